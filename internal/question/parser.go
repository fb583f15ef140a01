package question

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrFormat      = errors.New("payload is not a spreadsheet container")
	ErrNoQuestions = errors.New("no parseable questions in payload")
)

// RawQuestionRow is one normalized data row from the decrypted workbook.
type RawQuestionRow struct {
	Part          string
	Text          string
	Choices       []string
	CorrectAnswer string
	Marks         float64
}

// Column layout of a data row: part | text | choice A..D | answer | marks.
const (
	colPart = iota
	colText
	colChoiceA
	colChoiceB
	colChoiceC
	colChoiceD
	colCorrectAnswer
	colMarks
)

var validParts = map[string]bool{"A": true, "B": true, "C": true, "D": true, "E": true, "F": true}

var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"half": 0.5, "quarter": 0.25,
}

var numeralPattern = regexp.MustCompile(`\d+\.?\d*`)

// parseMarks accepts numeric literals, English number words, or free text
// containing a numeral ("6 marks" -> 6). Anything else falls back to 1.
func parseMarks(raw string) float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 1.0
	}
	if v, ok := numberWords[s]; ok {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if m := numeralPattern.FindString(s); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v
		}
	}
	return 1.0
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func normalizeRow(row []string) (RawQuestionRow, bool) {
	text := cell(row, colText)
	if text == "" {
		return RawQuestionRow{}, false
	}

	part := strings.ToUpper(cell(row, colPart))
	if !validParts[part] {
		part = "A"
	}

	out := RawQuestionRow{
		Part:          part,
		Text:          text,
		CorrectAnswer: cell(row, colCorrectAnswer),
		Marks:         parseMarks(cell(row, colMarks)),
	}

	switch part {
	case "A", "B":
		for idx := colChoiceA; idx <= colChoiceD; idx++ {
			if c := cell(row, idx); c != "" {
				out.Choices = append(out.Choices, c)
			}
		}
	case "F":
		// True/false uses at most the first two choice cells.
		for idx := colChoiceA; idx <= colChoiceB; idx++ {
			if c := cell(row, idx); c != "" {
				out.Choices = append(out.Choices, c)
			}
		}
		if len(out.Choices) == 0 {
			out.Choices = []string{"TRUE", "FALSE"}
		}
	}

	return out, true
}

// ParseWorkbook reads the decrypted payload as an xlsx workbook and returns
// the normalized data rows of the first sheet. The header row is skipped.
// Rows without a question text are skipped silently; rows the sheet reader
// cannot deliver are logged and skipped.
func ParseWorkbook(data []byte) ([]RawQuestionRow, error) {
	if len(data) < 2 || data[0] != 0x50 || data[1] != 0x4B {
		return nil, ErrFormat
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoQuestions
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var out []RawQuestionRow
	for i, row := range rows {
		if i == 0 {
			continue
		}
		parsed, ok := normalizeRow(row)
		if !ok {
			log.Printf("question import: skipping row %d: no question text", i+1)
			continue
		}
		out = append(out, parsed)
	}

	if len(out) == 0 {
		return nil, ErrNoQuestions
	}
	return out, nil
}

package question

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, dataRows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []any{"part", "question_text", "opt_a", "opt_b", "opt_c", "opt_d", "answers", "max_marks"}
	for col, v := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for i, row := range dataRows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseWorkbookRejectsNonSpreadsheet(t *testing.T) {
	for _, data := range [][]byte{nil, {0x50}, []byte("plain text payload"), {0x00, 0x01, 0x02, 0x03}} {
		if _, err := ParseWorkbook(data); !errors.Is(err, ErrFormat) {
			t.Fatalf("expected ErrFormat for %q, got %v", data, err)
		}
	}
}

func TestParseWorkbookRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"A", "What is the capital of France?", "Paris", "Lyon", "Nice", "Lille", "A", 2},
		{"B", "Select the prime numbers", "2", "4", "7", "9", "A,C", "three"},
		{"C", "Describe the water cycle.", "", "", "", "", "", "6 marks"},
		{"F", "The sun rises in the east.", "", "", "", "", "TRUE", ""},
		{"Z", "Unknown part falls back", "x", "y", "", "", "", "not a number"},
		{"A", "", "ignored", "", "", "", "", ""},
	})

	rows, err := ParseWorkbook(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows (blank text skipped), got %d", len(rows))
	}

	mcq := rows[0]
	if mcq.Part != "A" || mcq.Marks != 2 || len(mcq.Choices) != 4 || mcq.CorrectAnswer != "A" {
		t.Fatalf("unexpected MCQ row: %+v", mcq)
	}

	if rows[1].Marks != 3 {
		t.Fatalf("number word marks = %v, want 3", rows[1].Marks)
	}

	long := rows[2]
	if long.Part != "C" || long.Marks != 6 || long.Choices != nil {
		t.Fatalf("unexpected long-answer row: %+v", long)
	}

	tf := rows[3]
	if tf.Part != "F" || tf.CorrectAnswer != "TRUE" {
		t.Fatalf("unexpected true/false row: %+v", tf)
	}
	if len(tf.Choices) != 2 || tf.Choices[0] != "TRUE" || tf.Choices[1] != "FALSE" {
		t.Fatalf("expected synthesized TRUE/FALSE choices, got %v", tf.Choices)
	}

	fallback := rows[4]
	if fallback.Part != "A" {
		t.Fatalf("unrecognized part should clamp to A, got %q", fallback.Part)
	}
	if fallback.Marks != 1.0 {
		t.Fatalf("unparseable marks should default to 1, got %v", fallback.Marks)
	}
	if len(fallback.Choices) != 2 {
		t.Fatalf("expected 2 non-empty choices, got %v", fallback.Choices)
	}
}

func TestParseWorkbookTrueFalseKeepsProvidedChoices(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"F", "Water boils at 100C at sea level.", "Yes", "No", "", "", "A", 1},
	})

	rows, err := ParseWorkbook(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows[0].Choices) != 2 || rows[0].Choices[0] != "Yes" || rows[0].Choices[1] != "No" {
		t.Fatalf("expected provided T/F choices, got %v", rows[0].Choices)
	}
}

func TestParseWorkbookSkipsEmptyChoiceCells(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"A", "Pick one", "first", "", "third", "", "A", 1},
	})

	rows, err := ParseWorkbook(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := rows[0].Choices
	if len(got) != 2 || got[0] != "first" || got[1] != "third" {
		t.Fatalf("expected empty choices skipped, got %v", got)
	}
}

func TestParseWorkbookNoQuestions(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"A", "", "a", "b", "", "", "", ""},
		{"B", "", "", "", "", "", "", ""},
	})

	if _, err := ParseWorkbook(data); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestParseMarks(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 1},
		{"3", 3},
		{"2.5", 2.5},
		{"one", 1},
		{"Ten", 10},
		{"half", 0.5},
		{"quarter", 0.25},
		{"6 marks", 6},
		{"weight 1.5 each", 1.5},
		{"unmarked", 1},
	}
	for _, tc := range tests {
		if got := parseMarks(tc.in); got != tc.want {
			t.Fatalf("parseMarks(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

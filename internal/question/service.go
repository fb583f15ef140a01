// Package question implements the encrypted question-container import
// pipeline: decode, parse, normalize, and import exactly once.
package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/slogsolutions/army-portal/internal/content"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type Question struct {
	ID            int64           `json:"id"`
	Text          string          `json:"text"`
	Part          string          `json:"part"`
	Marks         float64         `json:"marks"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer *string         `json:"correct_answer,omitempty"`
	Category      string          `json:"category,omitempty"`
	TradeID       *int64          `json:"trade_id,omitempty"`
	UploadID      *int64          `json:"upload_id,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Upload struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category,omitempty"`
	TradeID    *int64    `json:"trade_id,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type ImportUploadInput struct {
	Filename   string
	Container  []byte
	Passphrase string
	Category   string
	TradeID    *int64
}

// ImportReport is built entirely from the import's return values, never from
// a follow-up count query.
type ImportReport struct {
	Upload   Upload     `json:"upload"`
	Parsed   int        `json:"parsed"`
	Created  int        `json:"created"`
	Skipped  int        `json:"skipped"`
	Imported []Question `json:"imported"`
}

// ImportUpload runs the whole pipeline for one encrypted container. Decode,
// parse, upload bookkeeping and question creation either all commit or none
// do.
func (s *Service) ImportUpload(ctx context.Context, in ImportUploadInput) (*ImportReport, error) {
	payload, err := content.Decode(in.Container, in.Passphrase)
	if err != nil {
		return nil, err
	}

	rows, err := ParseWorkbook(payload)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upload := Upload{
		Reference: uuid.NewString(),
		Filename:  in.Filename,
		Category:  in.Category,
		TradeID:   in.TradeID,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO uploads (reference, filename, category, trade_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at
	`, upload.Reference, upload.Filename, upload.Category, upload.TradeID).Scan(&upload.ID, &upload.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}

	created, err := s.importRows(ctx, tx, rows, in.Category, in.TradeID, upload.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	log.Printf("question import: %s created %d of %d parsed rows", in.Filename, len(created), len(rows))
	return &ImportReport{
		Upload:   upload,
		Parsed:   len(rows),
		Created:  len(created),
		Skipped:  len(rows) - len(created),
		Imported: created,
	}, nil
}

// importRows creates one question per row unless an active question with the
// same text (case-insensitive) already exists. Re-importing the same rows is
// a no-op.
func (s *Service) importRows(ctx context.Context, tx *sql.Tx, rows []RawQuestionRow, category string, tradeID *int64, uploadID int64) ([]Question, error) {
	created := make([]Question, 0, len(rows))

	for _, row := range rows {
		var existingID int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM questions
			WHERE lower(text) = lower($1) AND is_active
			LIMIT 1
		`, row.Text).Scan(&existingID)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("check duplicate question: %w", err)
		}

		var options []byte
		if len(row.Choices) > 0 {
			options, err = json.Marshal(map[string][]string{"choices": row.Choices})
			if err != nil {
				return nil, fmt.Errorf("marshal options: %w", err)
			}
		}

		var correct *string
		if row.CorrectAnswer != "" {
			correct = &row.CorrectAnswer
		}

		q := Question{
			Text:          row.Text,
			Part:          row.Part,
			Marks:         row.Marks,
			Options:       options,
			CorrectAnswer: correct,
			Category:      category,
			TradeID:       tradeID,
			UploadID:      &uploadID,
			IsActive:      true,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO questions (text, part, marks, options, correct_answer, category, trade_id, upload_id, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			RETURNING id, created_at
		`, q.Text, q.Part, q.Marks, nullableJSON(options), q.CorrectAnswer, q.Category, q.TradeID, uploadID).Scan(&q.ID, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}

		created = append(created, q)
	}

	return created, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// ListQuestions returns active questions, optionally restricted to one
// upload reference.
func (s *Service) ListQuestions(ctx context.Context, uploadRef string) ([]Question, error) {
	query := `
		SELECT q.id, q.text, q.part, q.marks, q.options, q.correct_answer,
			q.category, q.trade_id, q.upload_id, q.is_active, q.created_at
		FROM questions q
	`
	args := []any{}
	if uploadRef != "" {
		query += ` JOIN uploads u ON u.id = q.upload_id WHERE u.reference = $1 AND q.is_active`
		args = append(args, uploadRef)
	} else {
		query += ` WHERE q.is_active`
	}
	query += ` ORDER BY q.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.Text, &q.Part, &q.Marks, &options, &q.CorrectAnswer,
			&q.Category, &q.TradeID, &q.UploadID, &q.IsActive, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Options = options
		out = append(out, q)
	}
	return out, rows.Err()
}

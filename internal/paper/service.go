// Package paper manages question papers: creation, question linking, the
// tiered selection of the active paper for a candidate, and the manual
// integrity cascade that runs when papers are deleted.
package paper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoPaper          = errors.New("no suitable paper available")
	ErrPaperNotFound    = errors.New("paper not found")
	ErrUploadNotFound   = errors.New("upload not found")
	ErrQuestionNotFound = errors.New("question not found")
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type Paper struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Category        string    `json:"category,omitempty"`
	TradeID         *int64    `json:"trade_id,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Candidate carries the two fields the selector contract depends on.
type Candidate struct {
	Category string
	TradeID  *int64
}

type CreatePaperInput struct {
	Title           string
	Category        string
	TradeID         *int64
	DurationMinutes int
	IsActive        bool
}

func (s *Service) CreatePaper(ctx context.Context, in CreatePaperInput) (*Paper, error) {
	if in.Title == "" {
		in.Title = "Primary"
	}
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = 180
	}

	p := Paper{
		Title:           in.Title,
		Category:        in.Category,
		TradeID:         in.TradeID,
		DurationMinutes: in.DurationMinutes,
		IsActive:        in.IsActive,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO papers (title, category, trade_id, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Title, p.Category, p.TradeID, p.DurationMinutes, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert paper: %w", err)
	}
	return &p, nil
}

func (s *Service) ListPapers(ctx context.Context) ([]Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, trade_id, duration_minutes, is_active, created_at
		FROM papers
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var out []Paper
	for rows.Next() {
		var p Paper
		if err := rows.Scan(&p.ID, &p.Title, &p.Category, &p.TradeID, &p.DurationMinutes, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LinkQuestion attaches a question to a paper at the given order. Linking an
// already-linked question is a no-op.
func (s *Service) LinkQuestion(ctx context.Context, paperID, questionID int64, order int) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM papers WHERE id = $1)`, paperID).Scan(&exists); err != nil {
		return fmt.Errorf("check paper: %w", err)
	}
	if !exists {
		return ErrPaperNotFound
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1)`, questionID).Scan(&exists); err != nil {
		return fmt.Errorf("check question: %w", err)
	}
	if !exists {
		return ErrQuestionNotFound
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_questions (paper_id, question_id, ord)
		VALUES ($1, $2, $3)
		ON CONFLICT (paper_id, question_id) DO NOTHING
	`, paperID, questionID, order)
	if err != nil {
		return fmt.Errorf("link question: %w", err)
	}
	return nil
}

// LinkUploadQuestions links every question created by an upload to the paper,
// in question order, skipping questions already linked. Returns the number of
// new links.
func (s *Service) LinkUploadQuestions(ctx context.Context, paperID int64, uploadRef string) (int, error) {
	var uploadID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM uploads WHERE reference = $1`, uploadRef).Scan(&uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUploadNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load upload: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM papers WHERE id = $1)`, paperID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check paper: %w", err)
	}
	if !exists {
		return 0, ErrPaperNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_questions (paper_id, question_id, ord)
		SELECT $1, q.id, row_number() OVER (ORDER BY q.id)
		FROM questions q
		WHERE q.upload_id = $2 AND q.is_active
		ON CONFLICT (paper_id, question_id) DO NOTHING
	`, paperID, uploadID)
	if err != nil {
		return 0, fmt.Errorf("link upload questions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SelectForCandidate picks the active paper for a candidate. Tiers are tried
// in order and the first non-empty one wins; inside a tier the newest paper
// is chosen. Every tier requires an active paper with at least one active
// linked question.
func (s *Service) SelectForCandidate(ctx context.Context, c Candidate) (*Paper, error) {
	type tier struct {
		cond string
		args []any
	}

	var tiers []tier
	if c.Category != "" {
		tiers = append(tiers, tier{cond: "p.category = $1", args: []any{c.Category}})
	}
	if c.Category != "" && c.TradeID != nil {
		tiers = append(tiers, tier{cond: "p.category = $1 AND p.trade_id = $2", args: []any{c.Category, *c.TradeID}})
	}
	if c.TradeID != nil {
		tiers = append(tiers, tier{cond: "p.trade_id = $1", args: []any{*c.TradeID}})
	}
	tiers = append(tiers, tier{cond: "TRUE"})

	for _, t := range tiers {
		p, err := s.selectNewest(ctx, t.cond, t.args)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, ErrNoPaper
}

func (s *Service) selectNewest(ctx context.Context, cond string, args []any) (*Paper, error) {
	var p Paper
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.category, p.trade_id, p.duration_minutes, p.is_active, p.created_at
		FROM papers p
		WHERE p.is_active
			AND `+cond+`
			AND EXISTS (
				SELECT 1
				FROM paper_questions pq
				JOIN questions q ON q.id = pq.question_id
				WHERE pq.paper_id = p.id AND q.is_active
			)
		ORDER BY p.id DESC
		LIMIT 1
	`, args...).Scan(&p.ID, &p.Title, &p.Category, &p.TradeID, &p.DurationMinutes, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("select paper: %w", err)
	}
	return &p, nil
}

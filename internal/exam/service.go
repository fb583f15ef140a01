// Package exam runs a candidate's attempt at a paper: one session per
// (candidate, paper) pair, an immutable question snapshot, idempotent answer
// recording, and an irreversible finish.
package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/slogsolutions/army-portal/internal/paper"
)

var (
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoContent         = errors.New("paper has no active questions")
	ErrSessionCompleted  = errors.New("session already completed")
)

type paperSelector interface {
	SelectForCandidate(ctx context.Context, c paper.Candidate) (*paper.Paper, error)
}

type Service struct {
	db       *sql.DB
	selector paperSelector
	shuffle  bool
}

// NewService builds the session engine. When shuffle is set, each new
// session's question sequence gets one whole-sequence random permutation.
func NewService(db *sql.DB, selector paperSelector, shuffle bool) *Service {
	return &Service{db: db, selector: selector, shuffle: shuffle}
}

type Session struct {
	ID              int64      `json:"id"`
	PaperID         int64      `json:"paper_id"`
	CandidateID     int64      `json:"candidate_id"`
	TradeID         *int64     `json:"trade_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalQuestions  int        `json:"total_questions"`
	Score           *float64   `json:"score,omitempty"`
}

// SessionQuestion is one entry of a session's immutable ordered snapshot.
type SessionQuestion struct {
	QuestionID int64           `json:"question_id"`
	Order      int             `json:"order"`
	Text       string          `json:"text"`
	Part       string          `json:"part"`
	Marks      float64         `json:"marks"`
	Options    json.RawMessage `json:"options,omitempty"`
}

type AnswerInput struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

type StartResult struct {
	Session *Session     `json:"session"`
	Paper   *paper.Paper `json:"paper"`
}

// StartForCandidate selects the paper for a candidate and returns their
// session, creating it on first call.
func (s *Service) StartForCandidate(ctx context.Context, candidateID int64) (*StartResult, error) {
	var c paper.Candidate
	err := s.db.QueryRowContext(ctx, `
		SELECT category, trade_id FROM candidates WHERE id = $1
	`, candidateID).Scan(&c.Category, &c.TradeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}

	p, err := s.selector.SelectForCandidate(ctx, c)
	if err != nil {
		return nil, err
	}

	session, err := s.StartSession(ctx, candidateID, c.TradeID, p)
	if err != nil {
		return nil, err
	}
	return &StartResult{Session: session, Paper: p}, nil
}

// StartSession returns the existing session for (candidate, paper) unchanged,
// or creates one: the session row, the ordered question snapshot and one
// empty answer stub per question commit as a single transaction. Two
// concurrent creators are resolved by the (candidate_id, paper_id) unique
// constraint; the loser returns the winner's session.
func (s *Service) StartSession(ctx context.Context, candidateID int64, candidateTrade *int64, p *paper.Paper) (*Session, error) {
	if existing, err := s.findSession(ctx, candidateID, p.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	questionIDs, err := s.activeLinkedQuestionIDs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(questionIDs) == 0 {
		return nil, ErrNoContent
	}
	if s.shuffle {
		rand.Shuffle(len(questionIDs), func(i, j int) {
			questionIDs[i], questionIDs[j] = questionIDs[j], questionIDs[i]
		})
	}

	// The session carries the paper trade, falling back to the candidate's.
	tradeID := p.TradeID
	if tradeID == nil {
		tradeID = candidateTrade
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := Session{
		PaperID:         p.ID,
		CandidateID:     candidateID,
		TradeID:         tradeID,
		DurationMinutes: p.DurationMinutes,
		TotalQuestions:  len(questionIDs),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO exam_sessions (paper_id, candidate_id, trade_id, duration_minutes, total_questions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, started_at
	`, created.PaperID, created.CandidateID, created.TradeID, created.DurationMinutes, created.TotalQuestions).
		Scan(&created.ID, &created.StartedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent request won the race; serve its session.
			_ = tx.Rollback()
			return s.findSession(ctx, candidateID, p.ID)
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	for i, qid := range questionIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_questions (session_id, question_id, ord)
			VALUES ($1, $2, $3)
		`, created.ID, qid, i+1); err != nil {
			return nil, fmt.Errorf("insert session question: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO answers (candidate_id, paper_id, question_id, answer)
			VALUES ($1, $2, $3, '')
			ON CONFLICT (candidate_id, paper_id, question_id) DO NOTHING
		`, candidateID, p.ID, qid); err != nil {
			return nil, fmt.Errorf("insert answer stub: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	return &created, nil
}

// SubmitAnswer upserts the answer for one question of the session. Submitting
// the same question again overwrites; a question outside the session's
// snapshot is ignored and logged, never written.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, questionID int64, answer string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.CompletedAt != nil {
		return ErrSessionCompleted
	}

	var inSnapshot bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM session_questions sq
			JOIN questions q ON q.id = sq.question_id
			WHERE sq.session_id = $1 AND sq.question_id = $2 AND q.is_active
		)
	`, sessionID, questionID).Scan(&inSnapshot); err != nil {
		return fmt.Errorf("check session question: %w", err)
	}
	if !inSnapshot {
		log.Printf("session %d: ignoring answer for question %d outside snapshot", sessionID, questionID)
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (candidate_id, paper_id, question_id, answer, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (candidate_id, paper_id, question_id)
		DO UPDATE SET answer = EXCLUDED.answer, updated_at = now()
	`, session.CandidateID, session.PaperID, questionID, answer); err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// SubmitAnswers records a batch of answers and finishes the session, the
// shape of a full exam-form submission.
func (s *Service) SubmitAnswers(ctx context.Context, sessionID int64, answers []AnswerInput) (*Session, error) {
	for _, a := range answers {
		if err := s.SubmitAnswer(ctx, sessionID, a.QuestionID, a.Answer); err != nil {
			return nil, err
		}
	}
	return s.FinishSession(ctx, sessionID)
}

// FinishSession marks the session completed. Finishing an already-completed
// session is a no-op returning the session with its original completion time:
// first completion wins.
func (s *Service) FinishSession(ctx context.Context, sessionID int64) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var session Session
	err = tx.QueryRowContext(ctx, `
		SELECT id, paper_id, candidate_id, trade_id, started_at, completed_at,
			duration_minutes, total_questions, score
		FROM exam_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).Scan(&session.ID, &session.PaperID, &session.CandidateID, &session.TradeID,
		&session.StartedAt, &session.CompletedAt, &session.DurationMinutes,
		&session.TotalQuestions, &session.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session for finish: %w", err)
	}

	if session.CompletedAt == nil {
		var completedAt time.Time
		if err := tx.QueryRowContext(ctx, `
			UPDATE exam_sessions SET completed_at = now()
			WHERE id = $1
			RETURNING completed_at
		`, sessionID).Scan(&completedAt); err != nil {
			return nil, fmt.Errorf("finish session: %w", err)
		}
		session.CompletedAt = &completedAt
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit finish: %w", err)
	}
	return &session, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID int64) (*Session, error) {
	var session Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, paper_id, candidate_id, trade_id, started_at, completed_at,
			duration_minutes, total_questions, score
		FROM exam_sessions
		WHERE id = $1
	`, sessionID).Scan(&session.ID, &session.PaperID, &session.CandidateID, &session.TradeID,
		&session.StartedAt, &session.CompletedAt, &session.DurationMinutes,
		&session.TotalQuestions, &session.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &session, nil
}

// GetSessionQuestions serves the snapshot in its fixed order.
func (s *Service) GetSessionQuestions(ctx context.Context, sessionID int64) ([]SessionQuestion, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sq.question_id, sq.ord, q.text, q.part, q.marks, q.options
		FROM session_questions sq
		JOIN questions q ON q.id = sq.question_id
		WHERE sq.session_id = $1 AND q.is_active
		ORDER BY sq.ord, sq.id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session questions: %w", err)
	}
	defer rows.Close()

	var out []SessionQuestion
	for rows.Next() {
		var sq SessionQuestion
		var options []byte
		if err := rows.Scan(&sq.QuestionID, &sq.Order, &sq.Text, &sq.Part, &sq.Marks, &options); err != nil {
			return nil, fmt.Errorf("scan session question: %w", err)
		}
		sq.Options = options
		out = append(out, sq)
	}
	return out, rows.Err()
}

func (s *Service) findSession(ctx context.Context, candidateID, paperID int64) (*Session, error) {
	var session Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, paper_id, candidate_id, trade_id, started_at, completed_at,
			duration_minutes, total_questions, score
		FROM exam_sessions
		WHERE candidate_id = $1 AND paper_id = $2
	`, candidateID, paperID).Scan(&session.ID, &session.PaperID, &session.CandidateID, &session.TradeID,
		&session.StartedAt, &session.CompletedAt, &session.DurationMinutes,
		&session.TotalQuestions, &session.Score)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) activeLinkedQuestionIDs(ctx context.Context, paperID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pq.question_id
		FROM paper_questions pq
		JOIN questions q ON q.id = pq.question_id
		WHERE pq.paper_id = $1 AND q.is_active
		ORDER BY pq.ord, pq.id
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("load paper questions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

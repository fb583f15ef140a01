package paper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// CascadeReport describes what one paper deletion removed and what it kept.
type CascadeReport struct {
	PaperID            int64 `json:"paper_id"`
	SessionsDeleted    int64 `json:"sessions_deleted"`
	AnswersDeleted     int64 `json:"answers_deleted"`
	QuestionsDeleted   int64 `json:"questions_deleted"`
	QuestionsPreserved int64 `json:"questions_preserved"`
}

// PurgeReport describes an exam-data purge.
type PurgeReport struct {
	AnswersDeleted          int64 `json:"answers_deleted"`
	SessionQuestionsDeleted int64 `json:"session_questions_deleted"`
	SessionsDeleted         int64 `json:"sessions_deleted"`
}

// DeletePaper removes a paper and everything it exclusively owns in one
// transaction: session snapshots and sessions first, then answers keyed by
// the paper's questions, then questions no other paper links, then the links
// and the paper itself. Questions shared with another paper are preserved.
func (s *Service) DeletePaper(ctx context.Context, paperID int64) (*CascadeReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report, err := cascadeDelete(ctx, tx, paperID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}

	log.Printf("paper %d deleted: %d exclusive questions removed, %d shared preserved",
		paperID, report.QuestionsDeleted, report.QuestionsPreserved)
	return report, nil
}

// DeletePapers runs the same cascade for every paper inside a single
// transaction; one failure rolls back the whole bulk deletion.
func (s *Service) DeletePapers(ctx context.Context, paperIDs []int64) ([]CascadeReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reports := make([]CascadeReport, 0, len(paperIDs))
	for _, id := range paperIDs {
		report, err := cascadeDelete(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk delete: %w", err)
	}
	return reports, nil
}

func cascadeDelete(ctx context.Context, tx *sql.Tx, paperID int64) (*CascadeReport, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM papers WHERE id = $1)`, paperID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check paper: %w", err)
	}
	if !exists {
		return nil, ErrPaperNotFound
	}

	report := &CascadeReport{PaperID: paperID}

	// 1. The set of question ids linked to this paper.
	questionIDs, err := linkedQuestionIDs(ctx, tx, paperID)
	if err != nil {
		return nil, err
	}

	// 2. Session snapshots before sessions; sessions before the paper.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_questions
		WHERE session_id IN (SELECT id FROM exam_sessions WHERE paper_id = $1)
	`, paperID); err != nil {
		return nil, fmt.Errorf("delete session questions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM exam_sessions WHERE paper_id = $1`, paperID)
	if err != nil {
		return nil, fmt.Errorf("delete sessions: %w", err)
	}
	report.SessionsDeleted, _ = res.RowsAffected()

	// 3. Answers referencing any of the paper's questions, across all papers,
	// plus any answers still keyed to this paper.
	if len(questionIDs) > 0 {
		res, err = tx.ExecContext(ctx,
			`DELETE FROM answers WHERE question_id = ANY($1)`, questionIDs)
		if err != nil {
			return nil, fmt.Errorf("delete answers by question: %w", err)
		}
		report.AnswersDeleted, _ = res.RowsAffected()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE paper_id = $1`, paperID); err != nil {
		return nil, fmt.Errorf("delete answers by paper: %w", err)
	}

	// 4. Exclusivity check: a question still linked from another paper stays.
	for _, qid := range questionIDs {
		var refCount int64
		if err := tx.QueryRowContext(ctx, `
			SELECT count(*) FROM paper_questions
			WHERE question_id = $1 AND paper_id <> $2
		`, qid, paperID).Scan(&refCount); err != nil {
			return nil, fmt.Errorf("count question refs: %w", err)
		}
		if refCount > 0 {
			report.QuestionsPreserved++
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, qid); err != nil {
			return nil, fmt.Errorf("delete exclusive question: %w", err)
		}
		report.QuestionsDeleted++
	}

	// 5. The links and the paper itself.
	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_questions WHERE paper_id = $1`, paperID); err != nil {
		return nil, fmt.Errorf("delete paper links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, paperID); err != nil {
		return nil, fmt.Errorf("delete paper: %w", err)
	}

	return report, nil
}

func linkedQuestionIDs(ctx context.Context, tx *sql.Tx, paperID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT question_id FROM paper_questions WHERE paper_id = $1
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("load linked questions: %w", err)
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

// PurgeExamData deletes every answer, session snapshot and session while
// preserving questions, papers, candidates and trades.
func (s *Service) PurgeExamData(ctx context.Context) (*PurgeReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report := &PurgeReport{}

	res, err := tx.ExecContext(ctx, `DELETE FROM answers`)
	if err != nil {
		return nil, fmt.Errorf("purge answers: %w", err)
	}
	report.AnswersDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM session_questions`)
	if err != nil {
		return nil, fmt.Errorf("purge session questions: %w", err)
	}
	report.SessionQuestionsDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM exam_sessions`)
	if err != nil {
		return nil, fmt.Errorf("purge sessions: %w", err)
	}
	report.SessionsDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purge: %w", err)
	}
	return report, nil
}

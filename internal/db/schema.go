package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist yet. The unique constraints
// on exam_sessions and answers back the idempotence guarantees of the exam
// engine; they are load-bearing, not advisory.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidates (
	id BIGSERIAL PRIMARY KEY,
	army_no TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT '',
	trade_id BIGINT REFERENCES trades(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS uploads (
	id BIGSERIAL PRIMARY KEY,
	reference TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	trade_id BIGINT REFERENCES trades(id) ON DELETE SET NULL,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	text TEXT NOT NULL,
	part CHAR(1) NOT NULL DEFAULT 'A',
	marks NUMERIC(5,2) NOT NULL DEFAULT 1,
	options JSONB,
	correct_answer TEXT,
	category TEXT NOT NULL DEFAULT '',
	trade_id BIGINT REFERENCES trades(id) ON DELETE SET NULL,
	upload_id BIGINT REFERENCES uploads(id) ON DELETE SET NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS papers (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL DEFAULT 'Primary',
	category TEXT NOT NULL DEFAULT '',
	trade_id BIGINT REFERENCES trades(id) ON DELETE SET NULL,
	duration_minutes INT NOT NULL DEFAULT 180,
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS paper_questions (
	id BIGSERIAL PRIMARY KEY,
	paper_id BIGINT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	ord INT NOT NULL DEFAULT 0,
	UNIQUE (paper_id, question_id)
);

CREATE TABLE IF NOT EXISTS exam_sessions (
	id BIGSERIAL PRIMARY KEY,
	paper_id BIGINT NOT NULL REFERENCES papers(id),
	candidate_id BIGINT NOT NULL REFERENCES candidates(id),
	trade_id BIGINT REFERENCES trades(id) ON DELETE SET NULL,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	duration_minutes INT NOT NULL DEFAULT 180,
	total_questions INT NOT NULL DEFAULT 0,
	score NUMERIC(8,2),
	UNIQUE (candidate_id, paper_id)
);

CREATE TABLE IF NOT EXISTS session_questions (
	id BIGSERIAL PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES exam_sessions(id),
	question_id BIGINT NOT NULL REFERENCES questions(id),
	ord INT NOT NULL DEFAULT 0,
	UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS answers (
	id BIGSERIAL PRIMARY KEY,
	candidate_id BIGINT NOT NULL REFERENCES candidates(id),
	paper_id BIGINT NOT NULL REFERENCES papers(id),
	question_id BIGINT NOT NULL REFERENCES questions(id),
	answer TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (candidate_id, paper_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_questions_text_lower ON questions (lower(text)) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_paper_questions_question ON paper_questions (question_id);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers (question_id);
`

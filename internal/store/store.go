package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Session statuses persisted in the sessions table.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusStale     = "stale"
)

// Session is one persisted conversation row.
type Session struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Message is one question or answer in a session's transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"` // question or answer
	AgentName string    `json:"agent_name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// New connects from environment configuration (DATABASE_URL or POSTGRES_*).
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Session operations

func (s *Store) CreateSession(ctx context.Context, metadata []byte) (Session, error) {
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}
	var sess Session
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO sessions (status, metadata)
VALUES ($1,$2)
RETURNING id, status, metadata, created_at, updated_at
`, SessionStatusActive, metadata).Scan(&sess.ID, &sess.Status, &sess.Metadata, &sess.CreatedAt, &sess.UpdatedAt)
	return sess, err
}

func (s *Store) GetSession(ctx context.Context, id string) (Session, bool, error) {
	var sess Session
	err := s.DB.QueryRowContext(ctx, `
SELECT id, status, metadata, created_at, updated_at
FROM sessions
WHERE id=$1
`, id).Scan(&sess.ID, &sess.Status, &sess.Metadata, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, status, metadata, created_at, updated_at
FROM sessions
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Status, &sess.Metadata, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TouchSession bumps updated_at so the stale sweep sees recent activity.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE sessions SET updated_at=NOW() WHERE id=$1`, id)
	return err
}

// MarkStaleSessions flips active sessions idle for longer than the window
// to stale and returns how many rows changed.
func (s *Store) MarkStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE sessions
SET status=$1, updated_at=NOW()
WHERE status=$2 AND updated_at < NOW() - $3::interval
`, SessionStatusStale, SessionStatusActive, fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Question/answer/state log

func (s *Store) SaveQuestion(ctx context.Context, sessionID, questionText, agentName string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO questions (session_id, question_text, agent_name)
VALUES ($1,$2,$3)
RETURNING id
`, sessionID, questionText, agentName).Scan(&id)
	return id, err
}

func (s *Store) SaveAnswer(ctx context.Context, sessionID, agentName, answerText, questionID string) (string, error) {
	var qid sql.NullString
	if questionID != "" {
		qid = sql.NullString{String: questionID, Valid: true}
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO answers (session_id, question_id, agent_name, answer_text)
VALUES ($1,$2,$3,$4)
RETURNING id
`, sessionID, qid, agentName, answerText).Scan(&id)
	return id, err
}

// SaveStateSnapshot appends a versioned snapshot of the accumulated state.
func (s *Store) SaveStateSnapshot(ctx context.Context, sessionID string, state map[string]interface{}) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO session_states (session_id, state_key, state_value, version)
VALUES ($1,$2,$3,(SELECT COALESCE(MAX(version),0)+1 FROM session_states WHERE session_id=$1 AND state_key=$2))
`, sessionID, "full_state", payload)
	return err
}

// ListMessages returns the interleaved question/answer transcript of a
// session ordered by creation time.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, 'question' AS kind, COALESCE(agent_name,''), question_text, created_at FROM questions WHERE session_id=$1
UNION ALL
SELECT id, session_id, 'answer' AS kind, agent_name, answer_text, created_at FROM answers WHERE session_id=$1
ORDER BY created_at ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Kind, &m.AgentName, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestCreateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	query := regexp.QuoteMeta(`
INSERT INTO sessions (status, metadata)
VALUES ($1,$2)
RETURNING id, status, metadata, created_at, updated_at
`)
	mock.ExpectQuery(query).
		WithArgs(SessionStatusActive, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "metadata", "created_at", "updated_at"}).
			AddRow("sess-1", "active", []byte(`{}`), now, now))

	sess, err := st.CreateSession(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID != "sess-1" || sess.Status != "active" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`SELECT id, status, metadata, created_at, updated_at`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "metadata", "created_at", "updated_at"}))

	_, found, err := st.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveQuestionAndAnswer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	qInsert := regexp.QuoteMeta(`
INSERT INTO questions (session_id, question_text, agent_name)
VALUES ($1,$2,$3)
RETURNING id
`)
	mock.ExpectQuery(qInsert).
		WithArgs("sess-1", "Tell a story about Ada Lovelace", "user").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("q-1"))

	qid, err := st.SaveQuestion(context.Background(), "sess-1", "Tell a story about Ada Lovelace", "user")
	if err != nil {
		t.Fatalf("SaveQuestion: %v", err)
	}
	if qid != "q-1" {
		t.Fatalf("question id = %s", qid)
	}

	aInsert := regexp.QuoteMeta(`
INSERT INTO answers (session_id, question_id, agent_name, answer_text)
VALUES ($1,$2,$3,$4)
RETURNING id
`)
	mock.ExpectQuery(aInsert).
		WithArgs("sess-1", sqlmock.AnyArg(), "greeter", "pitch text").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))

	aid, err := st.SaveAnswer(context.Background(), "sess-1", "greeter", "pitch text", "q-1")
	if err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if aid != "a-1" {
		t.Fatalf("answer id = %s", aid)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveStateSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`INSERT INTO session_states`).
		WithArgs("sess-1", "full_state", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = st.SaveStateSnapshot(context.Background(), "sess-1", map[string]interface{}{"research_response": "x"})
	if err != nil {
		t.Fatalf("SaveStateSnapshot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkStaleSessions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`UPDATE sessions`).
		WithArgs(SessionStatusStale, SessionStatusActive, "86400 seconds").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.MarkStaleSessions(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("MarkStaleSessions: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectQuery(`UNION ALL`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "kind", "agent_name", "text", "created_at"}).
			AddRow("q-1", "sess-1", "question", "user", "hello", now).
			AddRow("a-1", "sess-1", "answer", "greeter", "pitch", now.Add(time.Second)))

	msgs, err := st.ListMessages(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Kind != "question" || msgs[1].Kind != "answer" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

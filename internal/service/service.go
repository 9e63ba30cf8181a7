package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/agente-films/moviepitch/internal/agents"
	"github.com/agente-films/moviepitch/internal/runner"
	"github.com/agente-films/moviepitch/internal/session"
	"github.com/agente-films/moviepitch/internal/store"
)

// ErrSessionNotFound is returned when a message targets a session id with
// no backing row. Surfaced to transports as a 404 rather than a generic
// failure.
var ErrSessionNotFound = errors.New("session not found")

// SessionService wires one pipeline runner per session id and exposes the
// create/send-message operations the transport layer consumes.
type SessionService struct {
	Store    *store.Store
	Cache    *session.Cache
	Registry *agents.Registry
	Gateway  runner.CompletionGateway
	Lookup   runner.ContextLookup
	Writer   runner.PitchWriter
	Logger   *log.Logger

	mu      sync.Mutex
	runners map[string]*runner.Runner
}

// New constructs the service with an empty runner table.
func New(st *store.Store, cache *session.Cache, registry *agents.Registry, gateway runner.CompletionGateway) *SessionService {
	return &SessionService{
		Store:    st,
		Cache:    cache,
		Registry: registry,
		Gateway:  gateway,
		runners:  make(map[string]*runner.Runner),
	}
}

// CreateSession persists a new session row.
func (s *SessionService) CreateSession(ctx context.Context, metadata []byte) (store.Session, error) {
	return s.Store.CreateSession(ctx, metadata)
}

// Runner returns the runner bound to the session id, creating and
// initializing one on first use. Idempotent per id.
func (s *SessionService) Runner(sessionID string) (*runner.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[sessionID]; ok {
		return r, nil
	}
	r := &runner.Runner{
		SessionID: sessionID,
		Cache:     s.Cache,
		Registry:  s.Registry,
		Gateway:   s.Gateway,
		Log:       s.Store,
		Lookup:    s.Lookup,
		Writer:    s.Writer,
		Logger:    s.Logger,
	}
	if err := r.Initialize(); err != nil {
		return nil, err
	}
	s.runners[sessionID] = r
	return r, nil
}

// SendMessage runs the full pipeline for one inbound message. The obs
// callback, when non-nil, receives step events as they happen.
func (s *SessionService) SendMessage(ctx context.Context, sessionID, message string, obs runner.Observer) (*runner.Transcript, error) {
	_, found, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	r, err := s.Runner(sessionID)
	if err != nil {
		return nil, err
	}
	tr, err := r.Run(ctx, message, obs)
	if err != nil {
		return nil, err
	}

	if err := s.Store.TouchSession(ctx, sessionID); err != nil {
		s.logf("touch session %s: %v", sessionID, err)
	}
	return tr, nil
}

// SearchNotes queries the session's accumulated research notes.
func (s *SessionService) SearchNotes(sessionID, q string, k int) ([]session.NoteHit, error) {
	rec, err := s.Cache.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}
	return rec.SearchNotes(q, k)
}

// DeleteSession removes the session row and drops any cached record and
// runner for the id.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := s.Store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	s.Cache.Invalidate(sessionID)
	s.mu.Lock()
	delete(s.runners, sessionID)
	s.mu.Unlock()
	return deleted, nil
}

func (s *SessionService) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

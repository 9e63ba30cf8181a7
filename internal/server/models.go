package server

import (
	"github.com/agente-films/moviepitch/internal/runner"
	"github.com/agente-films/moviepitch/internal/session"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateSessionRequest is an optional payload attached to a new session.
type CreateSessionRequest struct {
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MessageRequest is one user turn sent into a session's pipeline.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse is the pipeline result for one user turn.
type MessageResponse struct {
	SessionID string        `json:"session_id"`
	Response  string        `json:"response"`
	Thoughts  []runner.Step `json:"thoughts"`
}

// SearchResponse lists research notes matching a query.
type SearchResponse struct {
	Query string            `json:"query"`
	Hits  []session.NoteHit `json:"hits"`
}

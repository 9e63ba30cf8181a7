package server

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/agente-films/moviepitch/internal/runner"
	"github.com/agente-films/moviepitch/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin from the web UI container.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler runs the pipeline over a websocket, pushing per-agent
// progress frames as the run advances.
type StreamHandler struct {
	Service       *service.SessionService
	MaxMessageLen int
	Logger        *log.Logger
}

type wsInbound struct {
	Message string `json:"message"`
}

type wsFrame struct {
	Type    string `json:"type"` // status, thought, response, error
	Agent   string `json:"agent,omitempty"`
	Text    string `json:"text,omitempty"`
	Status  string `json:"status,omitempty"`
	Content string `json:"content,omitempty"`
}

func (h *StreamHandler) handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sessionID := c.Param("id")
	ctx := c.Request().Context()

	// Writes come from both this loop and the runner observer goroutine.
	var wmu sync.Mutex
	send := func(f wsFrame) {
		wmu.Lock()
		defer wmu.Unlock()
		if err := conn.WriteJSON(f); err != nil {
			h.logf("ws write to session %s: %v", sessionID, err)
		}
	}

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logf("ws read from session %s: %v", sessionID, err)
			}
			return nil
		}
		if in.Message == "" {
			send(wsFrame{Type: "error", Text: "message is required"})
			continue
		}
		if h.MaxMessageLen > 0 && len(in.Message) > h.MaxMessageLen {
			send(wsFrame{Type: "error", Text: "message too long"})
			continue
		}

		send(wsFrame{Type: "status", Text: "processing"})
		tr, err := h.Service.SendMessage(ctx, sessionID, in.Message, func(s runner.Step) {
			send(wsFrame{Type: "thought", Agent: s.Agent, Text: s.Text, Status: s.Status})
		})
		if err != nil {
			if errors.Is(err, service.ErrSessionNotFound) {
				send(wsFrame{Type: "error", Text: "session not found"})
				return nil
			}
			send(wsFrame{Type: "error", Text: err.Error()})
			continue
		}
		send(wsFrame{Type: "response", Content: tr.FinalText})
	}
}

func (h *StreamHandler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

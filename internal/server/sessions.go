package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/agente-films/moviepitch/internal/service"
	"github.com/agente-films/moviepitch/internal/store"
)

// SessionsHandler exposes the session lifecycle and the pipeline entrypoint.
type SessionsHandler struct {
	Service       *service.SessionService
	Store         *store.Store
	MaxMessageLen int
}

func (h *SessionsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/messages", h.messages)
	g.POST("/:id/messages", h.send)
	g.GET("/:id/search", h.search)
}

func (h *SessionsHandler) create(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var metadata []byte
	if req.Metadata != nil {
		metadata, _ = json.Marshal(req.Metadata)
	}
	sess, err := h.Service.CreateSession(c.Request().Context(), metadata)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *SessionsHandler) list(c echo.Context) error {
	items, err := h.Store.ListSessions(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Session{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *SessionsHandler) get(c echo.Context) error {
	sess, found, err := h.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *SessionsHandler) delete(c echo.Context) error {
	deleted, err := h.Service.DeleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionsHandler) messages(c echo.Context) error {
	id := c.Param("id")
	_, found, err := h.Store.GetSession(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	items, err := h.Store.ListMessages(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Message{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *SessionsHandler) send(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if h.MaxMessageLen > 0 && len(req.Message) > h.MaxMessageLen {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "message too long")
	}
	id := c.Param("id")
	tr, err := h.Service.SendMessage(c.Request().Context(), id, req.Message, nil)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, MessageResponse{SessionID: id, Response: tr.FinalText, Thoughts: tr.Trace})
}

func (h *SessionsHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k := 5
	if v := c.QueryParam("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = n
	}
	hits, err := h.Service.SearchNotes(c.Param("id"), q, k)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: q, Hits: hits})
}

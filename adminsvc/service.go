// Package adminsvc exposes a small read-only HTTP surface for inspecting
// persisted chat state, for operators debugging a stuck chat. It never
// mutates storage.
package adminsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/botfsm/fsm"
)

// Service reads chat state/context through a StorageBackend and renders it
// as JSON.
type Service struct {
	storage fsm.StorageBackend
}

// NewService builds a Service backed by storage.
func NewService(storage fsm.StorageBackend) *Service {
	return &Service{storage: storage}
}

// Serve registers the service's routes on e, matching the teacher's
// Serve(ctx, *echo.Echo) convention for mounting a sub-service.
func (s *Service) Serve(_ context.Context, e *echo.Echo) {
	e.GET("/debug/chats/:chat_id", s.getChat)
}

type chatSnapshot struct {
	ChatID  int64          `json:"chat_id"`
	State   string         `json:"state,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (s *Service) getChat(c echo.Context) error {
	raw := c.Param("chat_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chat_id")
	}
	chatID := fsm.ChatID(id)
	ctx := c.Request().Context()

	snapshot := chatSnapshot{ChatID: id}

	code, ok, err := s.storage.GetState(ctx, chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ok {
		snapshot.State = string(code)
	}

	vars, ok, err := s.storage.GetContext(ctx, chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ok {
		raw, err := vars.Snapshot()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		var asMap map[string]any
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		snapshot.Context = asMap
	}

	return c.JSON(http.StatusOK, snapshot)
}

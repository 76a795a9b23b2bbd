package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	history *History
}

func NewHandler(history *History) *Handler {
	return &Handler{history: history}
}

// RegisterRoutes mounts the dispatch views. They carry patient details, so
// authMW guards both.
func (h *Handler) RegisterRoutes(g *echo.Group, authMW echo.MiddlewareFunc) {
	g.GET("/notifications/stats", h.Stats, authMW)
	g.GET("/notifications/slot/:slotId", h.BySlot, authMW)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.history.Stats())
}

// BySlot returns the dispatch records for a slot, including the deep link a
// client can open when no relay is configured.
func (h *Handler) BySlot(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("slotId"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "slot id must be a positive integer")
	}
	return c.JSON(http.StatusOK, h.history.BySlot(id))
}

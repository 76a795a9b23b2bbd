package consultation

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

const MaxMessageRunes = 2000

// Asker is the part of Client the handler needs.
type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

type Handler struct {
	asker Asker
}

func NewHandler(asker Asker) *Handler {
	return &Handler{asker: asker}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/consultation", h.Ask)
}

type askRequest struct {
	Message string `json:"message"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

func (h *Handler) Ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return apperr.HTTPError(apperr.Validation("message is required"))
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return apperr.HTTPError(apperr.Validation("message is too long"))
	}

	reply, err := h.asker.Ask(c.Request().Context(), msg)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, askResponse{Reply: reply})
}

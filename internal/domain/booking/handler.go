package booking

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skindd/doclogs/internal/domain/identity"
	"github.com/skindd/doclogs/internal/domain/slot"
	"github.com/skindd/doclogs/internal/platform/apperr"
	"github.com/skindd/doclogs/internal/platform/auth"
)

type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

// RegisterRoutes mounts the /doctors routes. authMW guards the routes that
// act on behalf of a doctor.
func (h *Handler) RegisterRoutes(g *echo.Group, authMW echo.MiddlewareFunc) {
	d := g.Group("/doctors")
	d.GET("/slots/:doctorId", h.ListSlots)
	d.POST("/add_slot", h.AddSlot, authMW)
	d.DELETE("/remove_slot/:slotId", h.RemoveSlot, authMW)
	d.PUT("/confirm_slot/:slotId", h.ConfirmSlot)
	d.POST("/register", h.Register)
	d.POST("/login", h.Login)
	d.POST("/forgot_password", h.ForgotPassword)
}

type messageResponse struct {
	Message string `json:"message"`
}

func slotIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("slotId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.HTTPError(apperr.Validation("slot id must be a positive integer"))
	}
	return id, nil
}

func requester(c echo.Context) (string, error) {
	id := auth.DoctorIDFromContext(c.Request().Context())
	if id == "" {
		return "", apperr.HTTPError(apperr.New(apperr.KindUnauthorized, "authentication required"))
	}
	return id, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func (h *Handler) ListSlots(c echo.Context) error {
	slots, err := h.gw.ListSlots(c.Request().Context(), c.Param("doctorId"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

type addSlotResponse struct {
	SlotID  int64  `json:"slotId"`
	Message string `json:"message"`
}

func (h *Handler) AddSlot(c echo.Context) error {
	doctorID, err := requester(c)
	if err != nil {
		return err
	}
	var req AddSlotRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.gw.AddSlot(c.Request().Context(), doctorID, req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, addSlotResponse{SlotID: s.ID, Message: "Slot added successfully"})
}

func (h *Handler) RemoveSlot(c echo.Context) error {
	doctorID, err := requester(c)
	if err != nil {
		return err
	}
	id, err := slotIDParam(c)
	if err != nil {
		return err
	}
	if err := h.gw.RemoveSlot(c.Request().Context(), doctorID, id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Slot removed successfully"})
}

type confirmResponse struct {
	Message string     `json:"message"`
	Slot    *slot.Slot `json:"slot"`
}

func (h *Handler) ConfirmSlot(c echo.Context) error {
	id, err := slotIDParam(c)
	if err != nil {
		return err
	}
	var req ConfirmRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.gw.ConfirmSlot(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, confirmResponse{Message: "Slot confirmed successfully", Slot: s})
}

type registerResponse struct {
	Message string           `json:"message"`
	Doctor  identity.Summary `json:"doctor"`
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.gw.Register(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, registerResponse{Message: "Doctor registered successfully", Doctor: d.Summary()})
}

type loginResponse struct {
	Message string `json:"message"`
	*Session
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := h.gw.Login(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, loginResponse{Message: "Login successful", Session: sess})
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ResetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.gw.ResetCredential(c.Request().Context(), req); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

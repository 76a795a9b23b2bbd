package directory

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/skindd/doclogs/internal/platform/apperr"
	"github.com/skindd/doclogs/internal/platform/auth"
	"github.com/skindd/doclogs/pkg/pagination"
)

type Handler struct {
	store  Store
	logger zerolog.Logger
}

func NewHandler(store Store, logger zerolog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts the public search route and the authenticated
// profile route.
func (h *Handler) RegisterRoutes(g *echo.Group, authMW echo.MiddlewareFunc) {
	g.GET("/doctors/by_location/:location", h.ByLocation)
	g.PUT("/doctors/profile", h.UpsertProfile, authMW)
}

func (h *Handler) ByLocation(c echo.Context) error {
	city := strings.TrimSpace(c.Param("location"))
	if city == "" {
		return apperr.HTTPError(apperr.Validation("location is required"))
	}

	var f Filter
	f.Specialty = strings.TrimSpace(c.QueryParam("specialty"))
	if v := c.QueryParam("min_rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 5 {
			return apperr.HTTPError(apperr.Validation("min_rating must be a number between 0 and 5"))
		}
		f.MinRating = r
	}

	p := pagination.FromContext(c)
	profiles, total, err := h.store.ByLocation(c.Request().Context(), city, f, p.Limit, p.Offset)
	if err != nil {
		h.logger.Error().Err(err).Str("city", city).Msg("directory lookup failed")
		return apperr.HTTPError(apperr.Unavailable("doctor directory unavailable", err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(profiles, total, p))
}

type profileRequest struct {
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Contact   string  `json:"contact"`
	Image     string  `json:"image"`
	Rating    float64 `json:"rating"`
	City      string  `json:"city"`
}

// UpsertProfile lets the authenticated doctor publish their own profile.
func (h *Handler) UpsertProfile(c echo.Context) error {
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	if doctorID == "" {
		return apperr.HTTPError(apperr.New(apperr.KindUnauthorized, "authentication required"))
	}

	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p := &DoctorProfile{
		DoctorID:  doctorID,
		Name:      req.Name,
		Specialty: req.Specialty,
		Contact:   req.Contact,
		Image:     req.Image,
		Rating:    req.Rating,
		City:      req.City,
	}
	if err := p.Validate(); err != nil {
		return apperr.HTTPError(err)
	}
	if err := h.store.Upsert(c.Request().Context(), p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// Package booking is the request-facing layer over the slot engine and the
// identity service: it validates input, enforces slot ownership and fires the
// booking notice after a confirmed booking.
package booking

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/skindd/doclogs/internal/domain/identity"
	"github.com/skindd/doclogs/internal/domain/slot"
	"github.com/skindd/doclogs/internal/platform/apperr"
	"github.com/skindd/doclogs/internal/platform/metrics"
	"github.com/skindd/doclogs/internal/platform/notification"
	"github.com/skindd/doclogs/internal/platform/websocket"
)

// Notifier accepts booking notices without blocking.
type Notifier interface {
	Enqueue(n notification.BookingNotice) error
}

// Publisher fans slot changes out to live viewers.
type Publisher interface {
	Publish(ctx context.Context, ev websocket.Event) error
}

// TokenIssuer mints a session token for a logged-in doctor.
type TokenIssuer interface {
	Issue(doctorID, username string) (string, time.Time, error)
}

type AddSlotRequest struct {
	DoctorID string `json:"doctorId" validate:"required,max=64"`
	Date     string `json:"date" validate:"required"`
	Time     string `json:"time" validate:"required"`
}

type ConfirmRequest struct {
	PatientName    string `json:"patientName" validate:"required,personname"`
	PhoneNumber    string `json:"phoneNumber" validate:"required,phone10"`
	Address        string `json:"address" validate:"max=500"`
	ObservedStatus string `json:"observedStatus,omitempty" validate:"omitempty,eq=available"`
}

type RegisterRequest struct {
	DoctorID string `json:"doctorId" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetRequest struct {
	DoctorID    string `json:"doctorId" validate:"required"`
	Username    string `json:"username" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type Session struct {
	Doctor    identity.Summary `json:"doctor"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

type Gateway struct {
	engine   *slot.Engine
	identity *identity.Service
	tokens   TokenIssuer
	notifier Notifier
	feed     Publisher
	logger   zerolog.Logger
	validate *validator.Validate
	confirms *prometheus.CounterVec
}

func NewGateway(engine *slot.Engine, ids *identity.Service, tokens TokenIssuer, notifier Notifier, reg prometheus.Registerer, logger zerolog.Logger) (*Gateway, error) {
	confirms, err := metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "booking",
		Name:      "confirm_total",
		Help:      "Slot confirmation attempts by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	return &Gateway{
		engine:   engine,
		identity: ids,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger.With().Str("component", "booking_gateway").Logger(),
		validate: newValidator(),
		confirms: confirms,
	}, nil
}

// SetPublisher attaches the live slot feed.
func (g *Gateway) SetPublisher(p Publisher) {
	g.feed = p
}

func (g *Gateway) publish(ctx context.Context, kind string, s *slot.Slot) {
	if g.feed == nil {
		return
	}
	ev := websocket.Event{Type: kind, DoctorID: s.DoctorID, SlotID: s.ID, Status: string(s.Status), Date: s.Date, Time: s.Time}
	if err := g.feed.Publish(ctx, ev); err != nil {
		g.logger.Warn().Err(err).Int64("slot_id", s.ID).Str("event", kind).Msg("slot event not published")
	}
}

func (g *Gateway) ListSlots(ctx context.Context, doctorID string) ([]*slot.Slot, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, apperr.Validation("doctorId is required")
	}
	return g.engine.ListByOwner(ctx, doctorID)
}

// AddSlot creates a slot for requesterID. The body's doctorId must name the
// authenticated doctor, who must have a registered identity.
func (g *Gateway) AddSlot(ctx context.Context, requesterID string, req AddSlotRequest) (*slot.Slot, error) {
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if err := g.check(req); err != nil {
		return nil, err
	}
	if req.DoctorID != requesterID {
		return nil, slot.ErrNotOwner
	}
	ok, err := g.identity.Exists(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, slot.ErrUnknownOwner
	}
	s, err := g.engine.AddSlot(ctx, req.DoctorID, req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	g.publish(ctx, websocket.EventSlotAdded, s)
	return s, nil
}

func (g *Gateway) RemoveSlot(ctx context.Context, requesterID string, slotID int64) error {
	if err := g.engine.RemoveSlot(ctx, slotID, requesterID); err != nil {
		return err
	}
	g.publish(ctx, websocket.EventSlotRemoved, &slot.Slot{ID: slotID, DoctorID: requesterID})
	return nil
}

// ConfirmSlot books the slot for a patient. Once the engine reports success
// the booking stands; the notice is best effort.
func (g *Gateway) ConfirmSlot(ctx context.Context, slotID int64, req ConfirmRequest) (*slot.Slot, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Address = strings.TrimSpace(req.Address)
	req.ObservedStatus = strings.TrimSpace(req.ObservedStatus)
	if err := g.check(req); err != nil {
		g.confirms.WithLabelValues("invalid").Inc()
		return nil, err
	}

	s, err := g.engine.ConfirmBooking(ctx, slotID)
	if err != nil {
		g.confirms.WithLabelValues(outcomeOf(err)).Inc()
		return nil, err
	}
	g.confirms.WithLabelValues("booked").Inc()
	g.publish(ctx, websocket.EventSlotBooked, s)

	notice := notification.BookingNotice{
		SlotID:      s.ID,
		DoctorID:    s.DoctorID,
		PatientName: req.PatientName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Date:        s.Date,
		Time:        s.Time,
	}
	if g.notifier != nil {
		if err := g.notifier.Enqueue(notice); err != nil {
			g.logger.Warn().
				Err(apperr.Unavailable("booking notice not queued", err)).
				Int64("slot_id", s.ID).
				Msg("booking kept without notice")
		}
	}
	return s, nil
}

func outcomeOf(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		return "already_booked"
	case apperr.KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func (g *Gateway) Register(ctx context.Context, req RegisterRequest) (*identity.Doctor, error) {
	if err := g.check(req); err != nil {
		return nil, err
	}
	return g.identity.Register(ctx, req.DoctorID, req.Username, req.Password)
}

func (g *Gateway) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := g.check(req); err != nil {
		return nil, err
	}
	d, err := g.identity.Login(ctx, req.DoctorID, req.Password)
	if err != nil {
		return nil, err
	}
	token, exp, err := g.tokens.Issue(d.DoctorID, d.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Doctor: d.Summary(), Token: token, ExpiresAt: exp}, nil
}

func (g *Gateway) ResetCredential(ctx context.Context, req ResetRequest) error {
	if err := g.check(req); err != nil {
		return err
	}
	return g.identity.ResetCredential(ctx, req.DoctorID, req.Username, req.NewPassword)
}

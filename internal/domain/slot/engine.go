package slot

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

// Engine arbitrates slot transitions on top of a Store. It keeps no state of
// its own.
type Engine struct {
	store  Store
	logger zerolog.Logger
}

func NewEngine(store Store, logger zerolog.Logger) *Engine {
	return &Engine{store: store, logger: logger.With().Str("component", "booking_engine").Logger()}
}

func (e *Engine) AddSlot(ctx context.Context, doctorID, date, clock string) (*Slot, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, apperr.Validation("doctorId is required")
	}
	id, err := e.store.Create(ctx, doctorID, date, clock)
	if err != nil {
		return nil, err
	}
	e.logger.Info().Int64("slot_id", id).Str("doctor_id", doctorID).Msg("slot added")
	return e.store.Get(ctx, id)
}

func (e *Engine) Get(ctx context.Context, slotID int64) (*Slot, error) {
	return e.store.Get(ctx, slotID)
}

func (e *Engine) ListByOwner(ctx context.Context, doctorID string) ([]*Slot, error) {
	return e.store.ListByOwner(ctx, doctorID)
}

// ConfirmBooking moves a slot from available to booked. Of any number of
// concurrent calls for the same slot exactly one succeeds; the rest get
// ErrSlotAlreadyBooked. Owner, date and time never change after creation, so
// they are read before the transition and the result stays complete even if
// the owner removes the slot straight after.
func (e *Engine) ConfirmBooking(ctx context.Context, slotID int64) (*Slot, error) {
	s, err := e.store.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}

	err = e.store.CompareAndSetStatus(ctx, slotID, StatusAvailable, StatusBooked)
	switch {
	case err == nil:
	case errors.Is(err, ErrStatusConflict):
		e.logger.Info().Int64("slot_id", slotID).Str("outcome", "already_booked").Msg("booking rejected")
		return nil, ErrSlotAlreadyBooked
	default:
		return nil, err
	}

	e.logger.Info().Int64("slot_id", slotID).Str("doctor_id", s.DoctorID).Str("outcome", "booked").Msg("slot booked")
	s.Status = StatusBooked
	return s, nil
}

// RemoveSlot deletes a slot at any status, but only for its owner.
func (e *Engine) RemoveSlot(ctx context.Context, slotID int64, requestingDoctorID string) error {
	s, err := e.store.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if s.DoctorID != requestingDoctorID {
		e.logger.Warn().Int64("slot_id", slotID).Str("doctor_id", requestingDoctorID).Msg("remove rejected: not owner")
		return ErrNotOwner
	}
	if err := e.store.Remove(ctx, slotID); err != nil {
		return err
	}
	e.logger.Info().Int64("slot_id", slotID).Str("doctor_id", requestingDoctorID).Str("status", string(s.Status)).Msg("slot removed")
	return nil
}

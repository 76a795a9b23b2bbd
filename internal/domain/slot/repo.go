package slot

import (
	"context"
	"fmt"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

var (
	ErrSlotNotFound      = apperr.New(apperr.KindNotFound, "slot not found")
	ErrDuplicateSlot     = apperr.New(apperr.KindConflict, "this slot already exists")
	ErrStatusConflict    = apperr.New(apperr.KindConflict, "slot status changed")
	ErrSlotAlreadyBooked = apperr.New(apperr.KindConflict, "slot was just taken, pick another")
	ErrNotOwner          = apperr.New(apperr.KindForbidden, "slot belongs to another doctor")
	ErrUnknownOwner      = apperr.New(apperr.KindNotFound, "doctor not found")
)

// StatusConflictError is returned by CompareAndSetStatus when the stored
// status differs from the expected one.
type StatusConflictError struct {
	SlotID   int64
	Observed Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("slot %d: status is %s", e.SlotID, e.Observed)
}

func (e *StatusConflictError) Unwrap() error { return ErrStatusConflict }

// Store owns slot records. CompareAndSetStatus is the only way to change a
// slot's status and is atomic per slot id.
type Store interface {
	Create(ctx context.Context, doctorID, date, clock string) (int64, error)
	Get(ctx context.Context, id int64) (*Slot, error)
	ListByOwner(ctx context.Context, doctorID string) ([]*Slot, error)
	Remove(ctx context.Context, id int64) error
	CompareAndSetStatus(ctx context.Context, id int64, expected, next Status) error
}

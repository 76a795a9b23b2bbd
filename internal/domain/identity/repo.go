package identity

import (
	"context"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

var (
	ErrDuplicateDoctorID  = apperr.New(apperr.KindConflict, "doctor ID already exists")
	ErrIdentityNotFound   = apperr.New(apperr.KindNotFound, "doctor ID and username do not match")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid credentials")
)

// Store owns doctor identity records.
type Store interface {
	// Create fails with ErrDuplicateDoctorID and leaves the existing record
	// untouched when the id is taken.
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, doctorID string) (*Doctor, error)
	// UpdateCredential replaces the hash only when both doctorID and
	// username match one record.
	UpdateCredential(ctx context.Context, doctorID, username, hash string) error
	Exists(ctx context.Context, doctorID string) (bool, error)
}

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skindd/doclogs/internal/platform/db"
)

type doctorRepoPG struct{ q db.Querier }

func NewDoctorRepoPG(q db.Querier) Store { return &doctorRepoPG{q: q} }

const doctorCols = `doctor_id, username, password_hash, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO doctors (doctor_id, username, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id) DO NOTHING`,
		d.DoctorID, d.Username, d.CredentialHash)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateDoctorID
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, doctorID string) (*Doctor, error) {
	var d Doctor
	err := r.q.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE doctor_id = $1`, doctorID).
		Scan(&d.DoctorID, &d.Username, &d.CredentialHash, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

func (r *doctorRepoPG) UpdateCredential(ctx context.Context, doctorID, username, hash string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE doctors SET password_hash = $3, updated_at = NOW()
		WHERE doctor_id = $1 AND username = $2`,
		doctorID, username, hash)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (r *doctorRepoPG) Exists(ctx context.Context, doctorID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE doctor_id = $1)`, doctorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check doctor: %w", err)
	}
	return exists, nil
}

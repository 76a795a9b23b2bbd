package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skindd/doclogs/internal/platform/db"
)

type slotRepoPG struct{ q db.Querier }

func NewSlotRepoPG(q db.Querier) Store { return &slotRepoPG{q: q} }

const slotCols = `id, doctor_id, to_char(slot_date, 'YYYY-MM-DD'), to_char(slot_time, 'HH24:MI'), status, created_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var status string
	if err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.Time, &status, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

func (r *slotRepoPG) Create(ctx context.Context, doctorID, date, clock string) (int64, error) {
	date, clock, err := NormalizeDateTime(date, clock)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.q.QueryRow(ctx, `
		INSERT INTO slots (doctor_id, slot_date, slot_time, status)
		VALUES ($1, $2::date, $3::time, $4)
		RETURNING id`,
		doctorID, date, clock, string(StatusAvailable)).Scan(&id)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return 0, ErrDuplicateSlot
		case db.IsForeignKeyViolation(err):
			return 0, ErrUnknownOwner
		}
		return 0, fmt.Errorf("insert slot: %w", err)
	}
	return id, nil
}

func (r *slotRepoPG) Get(ctx context.Context, id int64) (*Slot, error) {
	s, err := r.scanSlot(r.q.QueryRow(ctx, `SELECT `+slotCols+` FROM slots WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %d: %w", id, err)
	}
	return s, nil
}

func (r *slotRepoPG) ListByOwner(ctx context.Context, doctorID string) ([]*Slot, error) {
	rows, err := r.q.Query(ctx, `SELECT `+slotCols+` FROM slots WHERE doctor_id = $1 ORDER BY id`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list slots for %s: %w", doctorID, err)
	}
	defer rows.Close()

	items := []*Slot{}
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) Remove(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// CompareAndSetStatus relies on the row lock taken by the conditional UPDATE:
// concurrent callers on the same id serialize there and only one sees the
// expected status.
func (r *slotRepoPG) CompareAndSetStatus(ctx context.Context, id int64, expected, next Status) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE slots SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(expected), string(next))
	if err != nil {
		return fmt.Errorf("update slot %d status: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var observed string
	err = r.q.QueryRow(ctx, `SELECT status FROM slots WHERE id = $1`, id).Scan(&observed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("read slot %d status: %w", id, err)
	}
	return &StatusConflictError{SlotID: id, Observed: Status(observed)}
}

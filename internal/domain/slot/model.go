package slot

import (
	"strings"
	"time"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

// Status is the lifecycle state of a slot. The only transition is
// available -> booked.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusBooked
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Slot is a bookable time unit owned by one doctor. Date and Time are kept in
// their canonical 24-hour text form (YYYY-MM-DD, HH:MM).
type Slot struct {
	ID        int64     `db:"id" json:"id"`
	DoctorID  string    `db:"doctor_id" json:"doctorId"`
	Date      string    `db:"slot_date" json:"date"`
	Time      string    `db:"slot_time" json:"time"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// NormalizeDateTime validates a date and time-of-day pair and returns their
// canonical forms. HH:MM:SS is accepted and truncated to HH:MM.
func NormalizeDateTime(date, clock string) (string, string, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return "", "", apperr.Validation("date and time are required")
	}

	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", "", apperr.Validation("date must be in YYYY-MM-DD format")
	}

	t, err := time.Parse(timeLayout, clock)
	if err != nil {
		if t, err = time.Parse("15:04:05", clock); err != nil {
			return "", "", apperr.Validation("time must be in 24-hour HH:MM format")
		}
	}
	return d.Format(dateLayout), t.Format(timeLayout), nil
}

// Package directory serves doctor profiles for location search and resolves
// the contact details booking notices are sent to.
package directory

import (
	"context"
	"strings"

	"github.com/skindd/doclogs/internal/platform/apperr"
)

var ErrProfileNotFound = apperr.New(apperr.KindNotFound, "doctor profile not found")

type DoctorProfile struct {
	DoctorID  string  `json:"doctorId"`
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Contact   string  `json:"contact"`
	Image     string  `json:"image"`
	Rating    float64 `json:"rating"`
	City      string  `json:"city"`
}

// Filter narrows a location search. Zero values match everything.
type Filter struct {
	Specialty string
	MinRating float64
}

// Finder is the read side used by the search endpoint and the notifier.
type Finder interface {
	ByLocation(ctx context.Context, city string, f Filter, limit, offset int) ([]*DoctorProfile, int, error)
	Contact(ctx context.Context, doctorID string) (name, number string, err error)
}

type Store interface {
	Finder
	Upsert(ctx context.Context, p *DoctorProfile) error
}

func (p *DoctorProfile) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.City = strings.TrimSpace(p.City)
	p.Specialty = strings.TrimSpace(p.Specialty)
	p.Contact = strings.TrimSpace(p.Contact)
	p.Image = strings.TrimSpace(p.Image)
	if p.DoctorID == "" {
		return apperr.Validation("doctorId is required")
	}
	if p.Name == "" || p.City == "" {
		return apperr.Validation("name and city are required")
	}
	if p.Rating < 0 || p.Rating > 5 {
		return apperr.Validation("rating must be between 0 and 5")
	}
	return nil
}

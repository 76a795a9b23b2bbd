package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]DoctorProfile
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]DoctorProfile)}
}

func (s *MemoryStore) Upsert(_ context.Context, p *DoctorProfile) error {
	s.mu.Lock()
	s.profiles[p.DoctorID] = *p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ByLocation(_ context.Context, city string, f Filter, limit, offset int) ([]*DoctorProfile, int, error) {
	s.mu.RLock()
	matched := make([]*DoctorProfile, 0)
	for _, p := range s.profiles {
		if !strings.EqualFold(p.City, city) {
			continue
		}
		if f.Specialty != "" && !strings.EqualFold(p.Specialty, f.Specialty) {
			continue
		}
		if p.Rating < f.MinRating {
			continue
		}
		cp := p
		matched = append(matched, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Rating != matched[j].Rating {
			return matched[i].Rating > matched[j].Rating
		}
		return matched[i].DoctorID < matched[j].DoctorID
	})

	total := len(matched)
	if offset >= total {
		return []*DoctorProfile{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) Contact(_ context.Context, doctorID string) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[doctorID]
	if !ok {
		return "", "", ErrProfileNotFound
	}
	return p.Name, p.Contact, nil
}

package identity

import (
	"context"
	"sync"
	"time"
)

type doctorEntry struct {
	mu  sync.Mutex
	doc Doctor
}

type MemoryStore struct {
	doctors sync.Map // doctorID -> *doctorEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, d *Doctor) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if _, loaded := s.doctors.LoadOrStore(d.DoctorID, &doctorEntry{doc: *d}); loaded {
		return ErrDuplicateDoctorID
	}
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, doctorID string) (*Doctor, error) {
	v, ok := s.doctors.Load(doctorID)
	if !ok {
		return nil, ErrIdentityNotFound
	}
	e := v.(*doctorEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.doc
	return &out, nil
}

func (s *MemoryStore) UpdateCredential(_ context.Context, doctorID, username, hash string) error {
	v, ok := s.doctors.Load(doctorID)
	if !ok {
		return ErrIdentityNotFound
	}
	e := v.(*doctorEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc.Username != username {
		return ErrIdentityNotFound
	}
	e.doc.CredentialHash = hash
	e.doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, doctorID string) (bool, error) {
	_, ok := s.doctors.Load(doctorID)
	return ok, nil
}

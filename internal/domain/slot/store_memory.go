package slot

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	mu      sync.Mutex
	slot    Slot
	removed bool
}

// MemoryStore is an in-process Store. Every slot has its own mutex, so
// transitions on different slots never contend; the indexes are sync.Maps.
type MemoryStore struct {
	nextID atomic.Int64
	slots  sync.Map // int64 -> *memoryEntry
	keys   sync.Map // naturalKey -> int64, rejects duplicate (doctor, date, time)
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func naturalKey(doctorID, date, clock string) string {
	return doctorID + "\x00" + date + "\x00" + clock
}

func (s *MemoryStore) Create(_ context.Context, doctorID, date, clock string) (int64, error) {
	date, clock, err := NormalizeDateTime(date, clock)
	if err != nil {
		return 0, err
	}

	id := s.nextID.Add(1)
	key := naturalKey(doctorID, date, clock)
	if _, taken := s.keys.LoadOrStore(key, id); taken {
		return 0, ErrDuplicateSlot
	}

	s.slots.Store(id, &memoryEntry{slot: Slot{
		ID:        id,
		DoctorID:  doctorID,
		Date:      date,
		Time:      clock,
		Status:    StatusAvailable,
		CreatedAt: time.Now().UTC(),
	}})
	return id, nil
}

func (s *MemoryStore) entry(id int64) (*memoryEntry, bool) {
	v, ok := s.slots.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*memoryEntry), true
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Slot, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, ErrSlotNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrSlotNotFound
	}
	out := e.slot
	return &out, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, doctorID string) ([]*Slot, error) {
	items := []*Slot{}
	s.slots.Range(func(_, v any) bool {
		e := v.(*memoryEntry)
		e.mu.Lock()
		if !e.removed && e.slot.DoctorID == doctorID {
			out := e.slot
			items = append(items, &out)
		}
		e.mu.Unlock()
		return true
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) Remove(_ context.Context, id int64) error {
	e, ok := s.entry(id)
	if !ok {
		return ErrSlotNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrSlotNotFound
	}
	e.removed = true
	s.slots.Delete(id)
	s.keys.Delete(naturalKey(e.slot.DoctorID, e.slot.Date, e.slot.Time))
	return nil
}

func (s *MemoryStore) CompareAndSetStatus(_ context.Context, id int64, expected, next Status) error {
	e, ok := s.entry(id)
	if !ok {
		return ErrSlotNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrSlotNotFound
	}
	if e.slot.Status != expected {
		return &StatusConflictError{SlotID: id, Observed: e.slot.Status}
	}
	e.slot.Status = next
	return nil
}

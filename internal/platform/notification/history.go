package notification

import (
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusAborted Status = "aborted"
	StatusDropped Status = "dropped"
)

// Record is the outcome of one dispatch attempt.
type Record struct {
	ID        string    `json:"id"`
	SlotID    int64     `json:"slotId"`
	DoctorID  string    `json:"doctorId"`
	Channel   string    `json:"channel,omitempty"`
	Status    Status    `json:"status"`
	Link      string    `json:"link,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// History keeps dispatch records in memory until pruned.
type History struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewHistory() *History {
	return &History{records: make(map[string]*Record)}
}

func (h *History) Add(r *Record) {
	h.mu.Lock()
	h.records[r.ID] = r
	h.mu.Unlock()
}

// BySlot returns copies of the records for one slot, oldest first.
func (h *History) BySlot(slotID int64) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range h.records {
		if r.SlotID == slotID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Stats counts records by status.
func (h *History) Stats() map[Status]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make(map[Status]int)
	for _, r := range h.records {
		stats[r.Status]++
	}
	return stats
}

// Prune drops records created before the cutoff and returns how many went.
func (h *History) Prune(before time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for id, r := range h.records {
		if r.CreatedAt.Before(before) {
			delete(h.records, id)
			n++
		}
	}
	return n
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestHistory_StatsAndPrune(t *testing.T) {
	h := NewHistory()
	now := time.Now()
	h.Add(&Record{ID: "a", SlotID: 1, Status: StatusSent, CreatedAt: now.Add(-48 * time.Hour)})
	h.Add(&Record{ID: "b", SlotID: 1, Status: StatusFailed, CreatedAt: now.Add(-time.Hour)})
	h.Add(&Record{ID: "c", SlotID: 2, Status: StatusSent, CreatedAt: now})

	stats := h.Stats()
	if stats[StatusSent] != 2 || stats[StatusFailed] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}

	if n := h.Prune(now.Add(-24 * time.Hour)); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 left, got %d", h.Len())
	}
}

func TestHistory_BySlotOrdered(t *testing.T) {
	h := NewHistory()
	now := time.Now()
	h.Add(&Record{ID: "late", SlotID: 5, CreatedAt: now})
	h.Add(&Record{ID: "early", SlotID: 5, CreatedAt: now.Add(-time.Minute)})
	h.Add(&Record{ID: "other", SlotID: 6, CreatedAt: now})

	recs := h.BySlot(5)
	if len(recs) != 2 || recs[0].ID != "early" || recs[1].ID != "late" {
		t.Errorf("unexpected order: %+v", recs)
	}
	if got := h.BySlot(99); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestHandler_BySlot(t *testing.T) {
	h := NewHistory()
	h.Add(&Record{ID: "a", SlotID: 3, Status: StatusSent, Link: "https://wa.me/91", CreatedAt: time.Now()})
	handler := NewHandler(h)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("slotId")
	c.SetParamValues("3")

	if err := handler.BySlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []Record
	json.Unmarshal(rec.Body.Bytes(), &out)
	if len(out) != 1 || out[0].Link == "" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_BySlot_BadID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("slotId")
	c.SetParamValues("abc")

	err := NewHandler(NewHistory()).BySlot(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Stats(t *testing.T) {
	h := NewHistory()
	h.Add(&Record{ID: "a", Status: StatusDropped, CreatedAt: time.Now()})

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := NewHandler(h).Stats(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]int
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["dropped"] != 1 {
		t.Errorf("unexpected stats body: %s", rec.Body.String())
	}
}

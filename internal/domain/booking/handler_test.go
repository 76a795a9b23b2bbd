package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/skindd/doclogs/internal/domain/identity"
	"github.com/skindd/doclogs/internal/domain/slot"
	"github.com/skindd/doclogs/internal/platform/auth"
	"github.com/skindd/doclogs/internal/platform/notification"
)

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notification.BookingNotice
	err     error
}

func (f *fakeNotifier) Enqueue(n notification.BookingNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

type harness struct {
	t        *testing.T
	e        *echo.Echo
	notifier *fakeNotifier
	issuer   *auth.TokenIssuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	engine := slot.NewEngine(slot.NewMemoryStore(), logger)
	ids := identity.NewService(identity.NewMemoryStore(), identity.NewBcryptHasher(bcrypt.MinCost), logger)
	jwtCfg := auth.JWTConfig{Issuer: "doclogs", SigningKey: []byte("test-signing-key"), TTL: time.Hour}
	issuer := auth.NewTokenIssuer(jwtCfg)
	n := &fakeNotifier{}

	gw, err := NewGateway(engine, ids, issuer, n, prometheus.NewRegistry(), logger)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	e := echo.New()
	NewHandler(gw).RegisterRoutes(e.Group(""), auth.JWTMiddleware(jwtCfg))
	return &harness{t: t, e: e, notifier: n, issuer: issuer}
}

func (h *harness) do(method, path, body, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

// registerAndLogin returns a session token for a fresh doctor.
func (h *harness) registerAndLogin(doctorID string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/doctors/register",
		fmt.Sprintf(`{"doctorId":%q,"username":"user-%s","password":"s3cret"}`, doctorID, doctorID), "")
	if rec.Code != http.StatusCreated {
		h.t.Fatalf("register %s: expected 201, got %d: %s", doctorID, rec.Code, rec.Body.String())
	}
	rec = h.do(http.MethodPost, "/doctors/login", fmt.Sprintf(`{"doctorId":%q,"password":"s3cret"}`, doctorID), "")
	if rec.Code != http.StatusOK {
		h.t.Fatalf("login %s: expected 200, got %d: %s", doctorID, rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	return out.Token
}

func (h *harness) addSlot(token, doctorID, date, clock string) int64 {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/doctors/add_slot",
		fmt.Sprintf(`{"doctorId":%q,"date":%q,"time":%q}`, doctorID, date, clock), token)
	if rec.Code != http.StatusCreated {
		h.t.Fatalf("add_slot: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		SlotID  int64  `json:"slotId"`
		Message string `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.SlotID <= 0 {
		h.t.Fatalf("add_slot: expected slot id, got %s", rec.Body.String())
	}
	return out.SlotID
}

func (h *harness) listSlots(doctorID string) []slot.Slot {
	h.t.Helper()
	rec := h.do(http.MethodGet, "/doctors/slots/"+doctorID, "", "")
	if rec.Code != http.StatusOK {
		h.t.Fatalf("list slots: expected 200, got %d", rec.Code)
	}
	var out []slot.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		h.t.Fatalf("decode slots: %v", err)
	}
	return out
}

const patient = `{"patientName":"Asha Rao","phoneNumber":"9876543210","address":"12 MG Road"}`

func confirmPath(id int64) string { return fmt.Sprintf("/doctors/confirm_slot/%d", id) }

func errorMessage(rec *httptest.ResponseRecorder) string {
	var out struct {
		Message string `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &out)
	return out.Message
}

func TestBooking_RoundTrip(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	first := h.addSlot(token, "D1", "2025-06-01", "10:00")
	second := h.addSlot(token, "D1", "2025-06-01", "11:00")

	slots := h.listSlots("D1")
	if len(slots) != 2 || slots[0].Status != slot.StatusAvailable || slots[1].Status != slot.StatusAvailable {
		t.Fatalf("expected two available slots, got %+v", slots)
	}

	rec := h.do(http.MethodPut, confirmPath(first), patient, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var confirmed struct {
		Slot slot.Slot `json:"slot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &confirmed); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if confirmed.Slot.ID != first || confirmed.Slot.DoctorID != "D1" || confirmed.Slot.Status != slot.StatusBooked {
		t.Errorf("unexpected confirmed slot: %+v", confirmed.Slot)
	}

	for _, s := range h.listSlots("D1") {
		want := slot.StatusAvailable
		if s.ID == first {
			want = slot.StatusBooked
		}
		if s.Status != want {
			t.Errorf("slot %d: expected %s, got %s", s.ID, want, s.Status)
		}
	}
	if s := h.listSlots("D1"); s[1].ID != second {
		t.Errorf("expected second slot to be listed, got %+v", s)
	}
}

func TestBooking_TwoPatientsSameSlot(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	id := h.addSlot(token, "D1", "2025-06-01", "10:00")

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		codes = make([]int, 2)
	)
	bodies := []string{
		`{"patientName":"Asha Rao","phoneNumber":"9876543210","address":"A"}`,
		`{"patientName":"Vikram Shah","phoneNumber":"9123456780","address":"B"}`,
	}
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			codes[i] = h.do(http.MethodPut, confirmPath(id), bodies[i], "").Code
		}(i)
	}
	close(start)
	wg.Wait()

	ok, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("expected one 200 and one 409, got %v", codes)
	}

	slots := h.listSlots("D1")
	if len(slots) != 1 || slots[0].Status != slot.StatusBooked {
		t.Errorf("expected one booked slot, got %+v", slots)
	}
	if h.notifier.count() != 1 {
		t.Errorf("expected exactly one notice, got %d", h.notifier.count())
	}
}

func TestBooking_ManyConcurrentConfirms(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	id := h.addSlot(token, "D1", "2025-06-01", "10:00")

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		taken   int
		message string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := h.do(http.MethodPut, confirmPath(id), patient, "")
			mu.Lock()
			defer mu.Unlock()
			switch rec.Code {
			case http.StatusOK:
				ok++
			case http.StatusConflict:
				taken++
				message = errorMessage(rec)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || taken != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", n-1, ok, taken)
	}
	if message != slot.ErrSlotAlreadyBooked.Message {
		t.Errorf("expected %q, got %q", slot.ErrSlotAlreadyBooked.Message, message)
	}
}

func TestConfirm_NotifierFailureKeepsBooking(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("queue full")
	token := h.registerAndLogin("D1")
	id := h.addSlot(token, "D1", "2025-06-01", "10:00")

	rec := h.do(http.MethodPut, confirmPath(id), patient, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite notifier failure, got %d", rec.Code)
	}
	if h.listSlots("D1")[0].Status != slot.StatusBooked {
		t.Error("booking must stand when the notice cannot be queued")
	}
}

func TestConfirm_NoticeCarriesBooking(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	id := h.addSlot(token, "D1", "2025-06-01", "10:00")

	h.do(http.MethodPut, confirmPath(id), `{"patientName":"  Asha Rao ","phoneNumber":"9876543210","address":" 12 MG Road "}`, "")

	if h.notifier.count() != 1 {
		t.Fatalf("expected one notice, got %d", h.notifier.count())
	}
	n := h.notifier.notices[0]
	if n.SlotID != id || n.DoctorID != "D1" || n.Date != "2025-06-01" || n.Time != "10:00" {
		t.Errorf("unexpected notice slot fields: %+v", n)
	}
	if n.PatientName != "Asha Rao" || n.Address != "12 MG Road" {
		t.Errorf("expected trimmed patient fields: %+v", n)
	}
}

func TestConfirm_Validation(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	id := h.addSlot(token, "D1", "2025-06-01", "10:00")

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"empty name", `{"patientName":"  ","phoneNumber":"9876543210"}`, "patient name is required"},
		{"digits in name", `{"patientName":"R2D2","phoneNumber":"9876543210"}`, "patient name must contain only letters and spaces"},
		{"punctuation in name", `{"patientName":"O'Brien","phoneNumber":"9876543210"}`, "patient name must contain only letters and spaces"},
		{"short phone", `{"patientName":"Asha","phoneNumber":"987654321"}`, "phone number must be exactly 10 digits"},
		{"long phone", `{"patientName":"Asha","phoneNumber":"98765432100"}`, "phone number must be exactly 10 digits"},
		{"letters in phone", `{"patientName":"Asha","phoneNumber":"98765abcde"}`, "phone number must be exactly 10 digits"},
		{"missing phone", `{"patientName":"Asha"}`, "phone number is required"},
		{"stale view", `{"patientName":"Asha","phoneNumber":"9876543210","observedStatus":"booked"}`, "selected slot is not available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPut, confirmPath(id), tt.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if got := errorMessage(rec); got != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, got)
			}
		})
	}

	if h.listSlots("D1")[0].Status != slot.StatusAvailable {
		t.Error("rejected requests must not book the slot")
	}
	if h.notifier.count() != 0 {
		t.Error("rejected requests must not notify")
	}
}

func TestConfirm_UnicodeNameAccepted(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	id := h.addSlot(token, "D1", "2025-06-01", "10:00")

	rec := h.do(http.MethodPut, confirmPath(id), `{"patientName":"Zoë Müller","phoneNumber":"9876543210","observedStatus":"available"}`, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConfirm_UnknownAndBadSlot(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(http.MethodPut, confirmPath(999), patient, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	for _, p := range []string{"/doctors/confirm_slot/abc", "/doctors/confirm_slot/0", "/doctors/confirm_slot/-4"} {
		if rec := h.do(http.MethodPut, p, patient, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", p, rec.Code)
		}
	}
}

func TestAddSlot_RequiresAuth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/doctors/add_slot", `{"doctorId":"D1","date":"2025-06-01","time":"10:00"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAddSlot_Errors(t *testing.T) {
	h := newHarness(t)
	token := h.registerAndLogin("D1")
	h.addSlot(token, "D1", "2025-06-01", "10:00")

	tests := []struct {
		name  string
		body  string
		token string
		code  int
	}{
		{"duplicate", `{"doctorId":"D1","date":"2025-06-01","time":"10:00"}`, token, http.StatusConflict},
		{"duplicate with seconds", `{"doctorId":"D1","date":"2025-06-01","time":"10:00:00"}`, token, http.StatusConflict},
		{"someone else's id", `{"doctorId":"D2","date":"2025-06-01","time":"12:00"}`, token, http.StatusForbidden},
		{"missing date", `{"doctorId":"D1","time":"12:00"}`, token, http.StatusBadRequest},
		{"bad date", `{"doctorId":"D1","date":"2025-13-01","time":"12:00"}`, token, http.StatusBadRequest},
		{"bad time", `{"doctorId":"D1","date":"2025-06-01","time":"25:00"}`, token, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/doctors/add_slot", tt.body, tt.token)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAddSlot_UnregisteredOwner(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.Issue("ghost", "ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := h.do(http.MethodPost, "/doctors/add_slot", `{"doctorId":"ghost","date":"2025-06-01","time":"10:00"}`, token)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRemoveSlot(t *testing.T) {
	h := newHarness(t)
	owner := h.registerAndLogin("D1")
	other := h.registerAndLogin("D2")
	id := h.addSlot(owner, "D1", "2025-06-01", "10:00")
	h.do(http.MethodPut, confirmPath(id), patient, "")

	rec := h.do(http.MethodDelete, fmt.Sprintf("/doctors/remove_slot/%d", id), "", other)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner: expected 403, got %d", rec.Code)
	}
	if s := h.listSlots("D1"); len(s) != 1 || s[0].Status != slot.StatusBooked {
		t.Fatalf("non-owner removal must leave the slot unchanged, got %+v", s)
	}

	rec = h.do(http.MethodDelete, fmt.Sprintf("/doctors/remove_slot/%d", id), "", owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", rec.Code)
	}
	if s := h.listSlots("D1"); len(s) != 0 {
		t.Errorf("expected no slots after removal, got %+v", s)
	}

	rec = h.do(http.MethodDelete, fmt.Sprintf("/doctors/remove_slot/%d", id), "", owner)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second removal: expected 404, got %d", rec.Code)
	}
}

func TestListSlots_UnknownDoctorEmpty(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/doctors/slots/nobody", "", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected 200 [], got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	body := `{"doctorId":"D1","username":"drsmith","password":"s3cret"}`

	rec := h.do(http.MethodPost, "/doctors/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "s3cret") || strings.Contains(rec.Body.String(), "$2") {
		t.Error("response must not expose the credential or its hash")
	}

	rec = h.do(http.MethodPost, "/doctors/register", `{"doctorId":"D1","username":"mallory","password":"x"}`, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/doctors/login", `{"doctorId":"D1","password":"s3cret"}`, ""); rec.Code != http.StatusOK {
		t.Error("original credential must survive a duplicate registration")
	}

	rec = h.do(http.MethodPost, "/doctors/register", `{"doctorId":"D2","username":"","password":"x"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing username: expected 400, got %d", rec.Code)
	}
}

func TestLogin_SameShapeForEveryFailure(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin("D1")

	wrong := h.do(http.MethodPost, "/doctors/login", `{"doctorId":"D1","password":"wrongpass"}`, "")
	unknown := h.do(http.MethodPost, "/doctors/login", `{"doctorId":"unknownDoc","password":"anything"}`, "")

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ: %s vs %s", wrong.Body.String(), unknown.Body.String())
	}
}

func TestLogin_OverlongPasswordMatchesWrongPasswordResponse(t *testing.T) {
	h := newHarness(t)
	pw := strings.Repeat("a", 72)
	rec := h.do(http.MethodPost, "/doctors/register",
		fmt.Sprintf(`{"doctorId":"D1","username":"drsmith","password":%q}`, pw), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	long := h.do(http.MethodPost, "/doctors/login",
		fmt.Sprintf(`{"doctorId":"D1","password":%q}`, pw+"WRONG-SUFFIX"), "")
	wrong := h.do(http.MethodPost, "/doctors/login", `{"doctorId":"D1","password":"wrongpass"}`, "")

	if long.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", long.Code, long.Body.String())
	}
	if long.Body.String() != wrong.Body.String() {
		t.Errorf("bodies differ: %s vs %s", long.Body.String(), wrong.Body.String())
	}
}

func TestLogin_ReturnsSummaryAndToken(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/doctors/register", `{"doctorId":"D1","username":"drsmith","password":"s3cret"}`, "")

	rec := h.do(http.MethodPost, "/doctors/login", `{"doctorId":"D1","password":"s3cret"}`, "")
	var out struct {
		Message string           `json:"message"`
		Doctor  identity.Summary `json:"doctor"`
		Token   string           `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Doctor != (identity.Summary{DoctorID: "D1", Username: "drsmith"}) {
		t.Errorf("unexpected summary: %+v", out.Doctor)
	}
	claims, err := h.issuer.Parse(out.Token)
	if err != nil || claims.Subject != "D1" {
		t.Errorf("expected a token for D1, got %v %v", claims, err)
	}
}

func TestForgotPassword(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/doctors/register", `{"doctorId":"D1","username":"drsmith","password":"old"}`, "")

	rec := h.do(http.MethodPost, "/doctors/forgot_password", `{"doctorId":"D1","username":"intruder","newPassword":"new"}`, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrong username: expected 404, got %d", rec.Code)
	}

	rec = h.do(http.MethodPost, "/doctors/forgot_password", `{"doctorId":"D1","username":"drsmith","newPassword":"new"}`, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/doctors/login", `{"doctorId":"D1","password":"new"}`, ""); rec.Code != http.StatusOK {
		t.Errorf("expected new credential to work, got %d", rec.Code)
	}

	rec = h.do(http.MethodPost, "/doctors/forgot_password", `{"doctorId":"D1","username":"drsmith"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing newPassword: expected 400, got %d", rec.Code)
	}
}

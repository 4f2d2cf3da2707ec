package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotbook/internal/admin"
	"slotbook/internal/booking"
	"slotbook/internal/models"
	"slotbook/internal/sheets"
)

type stubBooking struct {
	bookResult   *booking.Result
	bookErr      error
	cancelResult *booking.Result
	cancelErr    error
	bookings     []models.Signup
	bookingsErr  error
	lastRequest  booking.Request
}

func (s *stubBooking) Book(_ context.Context, req booking.Request) (*booking.Result, error) {
	s.lastRequest = req
	return s.bookResult, s.bookErr
}

func (s *stubBooking) Cancel(context.Context, int64, int64, string) (*booking.Result, error) {
	return s.cancelResult, s.cancelErr
}

func (s *stubBooking) ActiveBookings(context.Context, string) ([]models.Signup, error) {
	return s.bookings, s.bookingsErr
}

type stubCatalog struct {
	grouped map[string][]models.Slot
	flat    []models.Slot
	err     error
}

func (s *stubCatalog) ListAvailableSlots(context.Context) (map[string][]models.Slot, error) {
	return s.grouped, s.err
}

func (s *stubCatalog) ListAllSlots(context.Context) ([]models.Slot, error) {
	return s.flat, s.err
}

type stubAdmin struct {
	added     []models.Slot
	addErr    error
	deleteErr error
	deleted   []int64
}

func (s *stubAdmin) AddSlots(context.Context, []admin.NewSlot) ([]models.Slot, error) {
	return s.added, s.addErr
}

func (s *stubAdmin) DeleteSlots(_ context.Context, slotIDs []int64) error {
	s.deleted = slotIDs
	return s.deleteErr
}

type stubSessions struct {
	token    string
	loginErr error
}

func (s *stubSessions) Login(context.Context, string) (string, error) {
	return s.token, s.loginErr
}

func (s *stubSessions) Authenticate(_ context.Context, token string) bool {
	return token != "" && token == s.token
}

func (s *stubSessions) Logout(context.Context, string) {}

type stubExporter struct{ err error }

func (s *stubExporter) Export(_ context.Context, w io.Writer) error {
	if s.err != nil {
		return s.err
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

type testEnv struct {
	booking  *stubBooking
	catalog  *stubCatalog
	admin    *stubAdmin
	sessions *stubSessions
	handler  http.Handler
}

func newTestEnv(ready func(context.Context) error) *testEnv {
	logger := zerolog.New(io.Discard)
	env := &testEnv{
		booking:  &stubBooking{},
		catalog:  &stubCatalog{},
		admin:    &stubAdmin{},
		sessions: &stubSessions{token: "valid-token"},
	}
	env.handler = NewRouter(RouterConfig{
		Booking:  env.booking,
		Catalog:  env.catalog,
		Admin:    env.admin,
		Sessions: env.sessions,
		Exporter: &stubExporter{},
		Ready:    ready,
		Logger:   &logger,
	})
	return env
}

func (e *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func adminCookie() *http.Cookie {
	return &http.Cookie{Name: SessionCookie, Value: "valid-token"}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("Liveness", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ReadyWithoutProbe", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodGet, "/readyz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("NotReady", func(t *testing.T) {
		env := newTestEnv(func(context.Context) error { return errors.New("backend down") })
		rec := env.do(http.MethodGet, "/readyz", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleSlots(t *testing.T) {
	t.Run("GroupedCatalog", func(t *testing.T) {
		env := newTestEnv(nil)
		env.catalog.grouped = map[string][]models.Slot{
			"2099-06-16": {{ID: 1, Date: "2099-06-16", Label: "9 am", Capacity: 2, Taken: 1}},
		}

		rec := env.do(http.MethodGet, "/slots", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		dates := body["dates"].(map[string]any)
		day := dates["2099-06-16"].([]any)
		require.Len(t, day, 1)
		slot := day[0].(map[string]any)
		assert.Equal(t, float64(1), slot["available"])
	})

	t.Run("ContactLookup", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.bookings = []models.Signup{
			{ID: 7, SlotID: 3, Date: "2099-06-16", SlotLabel: "9 am", Name: "Alice", Contact: "79991234567"},
		}

		rec := env.do(http.MethodGet, "/slots?contact=79991234567", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		bookings := body["bookings"].([]any)
		require.Len(t, bookings, 1)
		first := bookings[0].(map[string]any)
		assert.Equal(t, float64(7), first["signupRowId"])
		assert.Equal(t, float64(3), first["slotRowId"])
	})

	t.Run("StoreUnavailable", func(t *testing.T) {
		env := newTestEnv(nil)
		env.catalog.err = sheets.ErrUnavailable

		rec := env.do(http.MethodGet, "/slots", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleBook(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.bookResult = &booking.Result{Message: "Booked 1 slot(s), see you there!"}

		rec := env.do(http.MethodPost, "/book",
			`{"name":"Alice","phone":"79991234567","slotIds":[1]}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []int64{1}, env.booking.lastRequest.SlotIDs)
	})

	t.Run("UnknownField", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodPost, "/book", `{"name":"Alice","bogus":1}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Validation", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.bookErr = &booking.ValidationError{Msg: "name must be at least 2 characters"}

		rec := env.do(http.MethodPost, "/book", `{"name":"A","slotIds":[1]}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Conflict", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.bookErr = &booking.ConflictError{Reason: booking.ReasonSlotFull, SlotIDs: []int64{4}}

		rec := env.do(http.MethodPost, "/book",
			`{"name":"Alice","phone":"79991234567","slotIds":[4]}`, nil)
		require.Equal(t, http.StatusConflict, rec.Code)

		body := decodeBody(t, rec)
		status := body["slotStatus"].(map[string]any)
		assert.Equal(t, booking.ReasonSlotFull, status["reason"])
	})

	t.Run("RateLimited", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.bookErr = booking.ErrRateLimited

		rec := env.do(http.MethodPost, "/book",
			`{"name":"Alice","phone":"79991234567","slotIds":[1]}`, nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestHandleCancel(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.cancelResult = &booking.Result{Message: "Booking cancelled."}

		rec := env.do(http.MethodPatch, "/book", `{"signupId":7,"contact":"79991234567"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.cancelErr = booking.ErrAlreadyCancelled

		rec := env.do(http.MethodPatch, "/book", `{"signupId":7}`, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		env := newTestEnv(nil)
		env.booking.cancelErr = booking.ErrNotFound

		rec := env.do(http.MethodPatch, "/book", `{"signupId":99}`, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminAuth(t *testing.T) {
	t.Run("NoCookie", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodGet, "/admin/slots", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("BadToken", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodGet, "/admin/slots", "", &http.Cookie{Name: SessionCookie, Value: "forged"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("LoginSetsCookie", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodPost, "/admin/login", `{"password":"hunter2"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var sessionCookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookie {
				sessionCookie = c
			}
		}
		require.NotNil(t, sessionCookie)
		assert.Equal(t, "valid-token", sessionCookie.Value)
		assert.True(t, sessionCookie.HttpOnly)
	})

	t.Run("LoginRejected", func(t *testing.T) {
		env := newTestEnv(nil)
		env.sessions.loginErr = admin.ErrBadCredentials

		rec := env.do(http.MethodPost, "/admin/login", `{"password":"wrong"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandleAdminMutateSlots(t *testing.T) {
	t.Run("AddSlots", func(t *testing.T) {
		env := newTestEnv(nil)
		env.admin.added = []models.Slot{{ID: 1, Date: "2099-06-16", Label: "9 am", Capacity: 2}}

		rec := env.do(http.MethodPost, "/admin/slots",
			`{"action":"addSlots","newSlotsData":[{"date":"2099-06-16","slotLabel":"9 am","capacity":2}]}`,
			adminCookie())
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		details := body["details"].([]any)
		assert.Len(t, details, 1)
	})

	t.Run("DeleteSlots", func(t *testing.T) {
		env := newTestEnv(nil)

		rec := env.do(http.MethodDelete, "/admin/slots",
			`{"action":"deleteSlots","rowIds":[1,2]}`, adminCookie())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []int64{1, 2}, env.admin.deleted)
	})

	t.Run("DeleteBlocked", func(t *testing.T) {
		env := newTestEnv(nil)
		env.admin.deleteErr = &admin.DeleteBlockedError{SlotIDs: []int64{2}}

		rec := env.do(http.MethodDelete, "/admin/slots",
			`{"action":"deleteSlots","rowIds":[1,2]}`, adminCookie())
		require.Equal(t, http.StatusConflict, rec.Code)

		body := decodeBody(t, rec)
		blocked := body["blocked"].([]any)
		assert.Equal(t, []any{float64(2)}, blocked)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		env := newTestEnv(nil)
		rec := env.do(http.MethodPost, "/admin/slots", `{"action":"truncate"}`, adminCookie())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleExport(t *testing.T) {
	env := newTestEnv(nil)
	rec := env.do(http.MethodGet, "/admin/export", "", adminCookie())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestRequestIDMiddleware(t *testing.T) {
	env := newTestEnv(nil)

	t.Run("Generated", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/healthz", "", nil)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})
}

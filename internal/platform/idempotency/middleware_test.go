package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var fixedTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func newIntentRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/intents", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handlerCalled := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { handlerCalled = true })

	rr := httptest.NewRecorder()
	Middleware(NewMemoryStore(), WithClock(fixedClock))(next).ServeHTTP(rr, newIntentRequest("", `{"shopId":"s1"}`))

	if handlerCalled {
		t.Fatal("handler should not be invoked when header is missing")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"paymentId":"p1"}`))
	})
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(next)

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newIntentRequest("abc-123", `{"shopId":"s1"}`))
	if rr1.Code != http.StatusCreated {
		t.Fatalf("expected first status 201, got %d", rr1.Code)
	}
	if rr1.Header().Get(replayHeaderName) != "" {
		t.Fatal("first response must not be marked as replay")
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newIntentRequest("abc-123", `{"shopId":"s1"}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if rr2.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", rr2.Code)
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header on second response")
	}
	if got := rr2.Body.String(); got != `{"paymentId":"p1"}` {
		t.Fatalf("unexpected replay body %q", got)
	}
	if got := rr2.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content type replayed, got %q", got)
	}
}

func TestMiddleware_ConflictingFingerprintReturnsConflict(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(next)

	handler.ServeHTTP(httptest.NewRecorder(), newIntentRequest("dup", `{"shopId":"s1"}`))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newIntentRequest("dup", `{"shopId":"s2"}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_conflict")
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
}

func TestMiddleware_PendingReservationReturnsConflict(t *testing.T) {
	store := NewMemoryStore()
	req := newIntentRequest("busy", `{"shopId":"s1"}`)
	body := []byte(`{"shopId":"s1"}`)
	if _, err := store.Reserve(context.Background(), scopedKey("busy", req), requestFingerprint(req, body), fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	rr := httptest.NewRecorder()
	Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run while the key is pending")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(next)

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newIntentRequest("retry", `{}`))
	if rr1.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newIntentRequest("retry", `{}`))
	if rr2.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to reach handler, status=%d calls=%d", rr2.Code, calls)
	}
}

func TestMiddleware_SameKeyDifferentRoutesDoNotCollide(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newIntentRequest("k", `{}`))

	other := httptest.NewRequest(http.MethodPost, "/api/v1/payments/split-preview", bytes.NewBufferString(`{}`))
	other.Header.Set("Idempotency-Key", "k")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	if rr.Code != http.StatusCreated || rr.Header().Get(replayHeaderName) != "" {
		t.Fatalf("expected fresh response on a different route, got %d", rr.Code)
	}
}

func TestMiddleware_CompleteFailureStillReturnsResponse(t *testing.T) {
	store := &stubStore{completeErr: errors.New("firestore down")}
	rr := httptest.NewRecorder()
	Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"paymentId":"p1"}`))
	})).ServeHTTP(rr, newIntentRequest("k", `{}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected handler response to be written, got %d", rr.Code)
	}
	if store.released != 1 {
		t.Fatalf("expected key release after complete failure, got %d", store.released)
	}
}

func TestMiddleware_ReserveFailureReturnsUnavailable(t *testing.T) {
	store := &stubStore{reserveErr: errors.New("deadline exceeded")}
	rr := httptest.NewRecorder()
	Middleware(store)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, newIntentRequest("k", `{}`))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_unavailable")
}

func TestMemoryStore_ExpiredRecordIsReplaced(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Reserve(ctx, "k", "fp1", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Complete(ctx, "k", "fp1", Response{Status: http.StatusCreated}, fixedTime, time.Minute); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, err := store.Reserve(ctx, "k", "fp2", fixedTime.Add(2*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
	if res.State != ReservationStateNew {
		t.Fatalf("expected new reservation after expiry, got %v", res.State)
	}
}

type stubStore struct {
	reserveErr  error
	completeErr error
	released    int
}

func (s *stubStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	if s.reserveErr != nil {
		return Reservation{}, s.reserveErr
	}
	return Reservation{State: ReservationStateNew, Record: newPendingRecord(key, fingerprint, now, ttl)}, nil
}

func (s *stubStore) Complete(context.Context, string, string, Response, time.Time, time.Duration) error {
	return s.completeErr
}

func (s *stubStore) Release(context.Context, string) error {
	s.released++
	return nil
}

func assertErrorResponse(t *testing.T, payload []byte, expected string) {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if body["error"] != expected {
		t.Fatalf("expected error %q, got %v", expected, body["error"])
	}
}

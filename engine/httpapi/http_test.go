package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"companion.arpa/engine/avatar"
)

type fakeResponder struct {
	responses []string
	commands  []string
	err       error
	state     avatar.State
}

func (f *fakeResponder) ProcessResponse(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.responses = append(f.responses, text)
	return "clean: " + text, nil
}

func (f *fakeResponder) ProcessCommand(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.commands = append(f.commands, text)
	return text, nil
}

func (f *fakeResponder) AvatarState() avatar.State {
	return f.state
}

func newTestServer(responder *fakeResponder) *Server {
	return NewServer(zap.NewNop(), Config{ServerURL: "http://localhost:0", RespondPerSecond: 100, RespondBurst: 100}, responder)
}

func TestRespond(t *testing.T) {
	responder := &fakeResponder{}
	h := newTestServer(responder)

	req := httptest.NewRequest(http.MethodPost, "/api/respond", strings.NewReader(`{"text":"hello [AVATAR:expression=happy]"}`))
	rec := httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp textResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Text, "clean: ") {
		t.Errorf("Response text = %q", resp.Text)
	}
	if len(responder.responses) != 1 {
		t.Errorf("ProcessResponse calls = %d", len(responder.responses))
	}
}

func TestRespond_BadBody(t *testing.T) {
	h := newTestServer(&fakeResponder{})

	req := httptest.NewRequest(http.MethodPost, "/api/respond", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestRespond_ProcessingError(t *testing.T) {
	h := newTestServer(&fakeResponder{err: errors.New("boom")})

	req := httptest.NewRequest(http.MethodPost, "/api/respond", strings.NewReader(`{"text":"x"}`))
	rec := httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
}

func TestRespond_RateLimited(t *testing.T) {
	responder := &fakeResponder{}
	h := NewServer(zap.NewNop(), Config{ServerURL: "http://localhost:0", RespondPerSecond: 0.001, RespondBurst: 1}, responder)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/respond", strings.NewReader(`{"text":"x"}`))
		rec := httptest.NewRecorder()
		h.serveMux.ServeHTTP(rec, req)

		switch i {
		case 0:
			if rec.Code != http.StatusOK {
				t.Errorf("First request status = %d", rec.Code)
			}
		case 1:
			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("Second request status = %d, want 429", rec.Code)
			}
		}
	}
}

func TestCommand_NotRateLimited(t *testing.T) {
	responder := &fakeResponder{}
	h := NewServer(zap.NewNop(), Config{ServerURL: "http://localhost:0", RespondPerSecond: 0.001, RespondBurst: 1}, responder)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"[AVATAR:pose=sitting]"}`))
		rec := httptest.NewRecorder()
		h.serveMux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d status = %d", i, rec.Code)
		}
	}
	if len(responder.commands) != 3 {
		t.Errorf("ProcessCommand calls = %d, want 3", len(responder.commands))
	}
}

func TestAvatarState(t *testing.T) {
	responder := &fakeResponder{state: avatar.State{Visible: true, Expression: "happy", Scale: 1.0, Opacity: 1.0}}
	h := newTestServer(responder)

	req := httptest.NewRequest(http.MethodGet, "/api/avatar/state", nil)
	rec := httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var state avatar.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !state.Visible || state.Expression != "happy" {
		t.Errorf("State = %+v", state)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(&fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}

	// Readiness lags startup; a fresh server reports unavailable.
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready status = %d, want 503", rec.Code)
	}

	// Draining degrades health.
	if err := h.BeginShutdown(context.Background()); err != nil {
		t.Fatalf("BeginShutdown: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	h.serveMux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/healthz status = %d, want 503", rec.Code)
	}
}

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestHealthz(t *testing.T) {
	s := NewServer(zerolog.Nop())
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
}

func TestRaidsSnapshot(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.MountRaids(func() any { return []string{"Brunnen"} })
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raids", nil))
	if !strings.Contains(rec.Body.String(), "Brunnen") {
		t.Fatalf("ожидали снимок в ответе, получили %q", rec.Body.String())
	}
}

func TestWebhookSecret(t *testing.T) {
	s := NewServer(zerolog.Nop())
	called := 0
	s.MountWebhook("/bot/webhook", "s3cret", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/webhook", nil))
	if rec.Code != http.StatusUnauthorized || called != 0 {
		t.Fatalf("запрос без секрета должен отклоняться, код %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	req.Header.Set(SecretHeader, "s3cret")
	rec = httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || called != 1 {
		t.Fatalf("ожидали вызов обработчика, код %d", rec.Code)
	}
}

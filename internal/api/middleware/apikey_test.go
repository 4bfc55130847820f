package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cliphaven/cliphaven/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(nil)
	if auth.Enabled() {
		t.Error("auth should be disabled without keys")
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	if code := serve(auth.Middleware(okHandler()), req); code != http.StatusOK {
		t.Errorf("disabled auth: status = %d, want %d", code, http.StatusOK)
	}
}

func TestAPIKeyAuth_Keys(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{"key-1", " key-2 ", ""})
	if !auth.Enabled() {
		t.Fatal("auth should be enabled")
	}
	h := auth.Middleware(okHandler())

	cases := []struct {
		name  string
		setup func(r *http.Request)
		path  string
		want  int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer key-1") }, "/api/v1/items", http.StatusOK},
		{"header", func(r *http.Request) { r.Header.Set("X-API-Key", "key-2") }, "/api/v1/usage", http.StatusOK},
		{"query", func(r *http.Request) {}, "/api/v1/search/sessions/x/events?api_key=key-1", http.StatusOK},
		{"wrong", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "/api/v1/items", http.StatusUnauthorized},
		{"missing", func(r *http.Request) {}, "/api/v1/ask", http.StatusUnauthorized},
		{"health", func(r *http.Request) {}, "/health", http.StatusOK},
		{"version", func(r *http.Request) {}, "/version", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		tc.setup(req)
		if code := serve(h, req); code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, code, tc.want)
		}
	}
}

func TestAPIKeyAuth_AddRemoveKey(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(nil)
	auth.AddKey("runtime-key")
	if !auth.Enabled() {
		t.Error("should be enabled after AddKey")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.Header.Set("X-API-Key", "runtime-key")
	if code := serve(auth.Middleware(okHandler()), req); code != http.StatusOK {
		t.Errorf("runtime key: status = %d, want %d", code, http.StatusOK)
	}

	auth.RemoveKey("runtime-key")
	if auth.Enabled() {
		t.Error("should be disabled after removing last key")
	}
}

func TestLoggerAndTelemetry_PassThrough(t *testing.T) {
	h := middleware.Logger(middleware.Telemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Error("wrapped writer should support flushing")
		}
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if code := serve(h, req); code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", code, http.StatusTeapot)
	}
}

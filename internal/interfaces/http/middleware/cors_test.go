package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func corsRequest(method, origin string) *http.Request {
	r := httptest.NewRequest(method, "/api/v1/molecules/canonical", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestCORS_Preflight(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowedOrigins = []string{"https://app.example.com"}
	handler := CORS(config)(okHandler())

	w := httptest.NewRecorder()
	r := corsRequest(http.MethodOptions, "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", "POST")
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Body.String())
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"exact match", []string{"https://a.com", "https://b.com"}, "https://b.com", "https://b.com"},
		{"case insensitive", []string{"https://A.com"}, "https://a.com", "https://a.com"},
		{"disallowed", []string{"https://a.com"}, "https://evil.com", ""},
		{"any origin", []string{"*"}, "https://x.org", "*"},
		{"subdomain", []string{"*.example.com"}, "https://lab.example.com", "https://lab.example.com"},
		{"subdomain mismatch", []string{"*.example.com"}, "https://example.org", ""},
		{"nothing configured", nil, "https://a.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultCORSConfig()
			config.AllowedOrigins = tt.allowed
			w := httptest.NewRecorder()
			CORS(config)(okHandler()).ServeHTTP(w, corsRequest(http.MethodPost, tt.origin))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ok", w.Body.String())
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowedOrigins = []string{"*"}
	w := httptest.NewRecorder()
	CORS(config)(okHandler()).ServeHTTP(w, corsRequest(http.MethodGet, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Values("Vary"))
}

func TestCORS_ActualRequestHeaders(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowedOrigins = []string{"https://app.example.com"}
	w := httptest.NewRecorder()
	CORS(config)(okHandler()).ServeHTTP(w, corsRequest(http.MethodPost, "https://app.example.com"))

	exposed := w.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, RequestIDHeader)
	assert.Contains(t, exposed, "Retry-After")
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_OptionsWithoutPreflightPassesThrough(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowedOrigins = []string{"https://app.example.com"}
	w := httptest.NewRecorder()
	CORS(config)(okHandler()).ServeHTTP(w, corsRequest(http.MethodOptions, "https://app.example.com"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultCORSConfig(t *testing.T) {
	config := DefaultCORSConfig()

	assert.Empty(t, config.AllowedOrigins)
	assert.Contains(t, config.AllowedMethods, http.MethodPost)
	assert.NotContains(t, config.AllowedMethods, http.MethodDelete)
	assert.Contains(t, config.AllowedHeaders, RequestIDHeader)
	assert.Equal(t, 600, config.MaxAge)
}

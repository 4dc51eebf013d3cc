package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/quotawatch/internal/transport/dto"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := BearerAuthMiddleware(keys)(okHandler())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/snapshot", http.NoBody))
		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want %d", keys, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing header", "/snapshot", "", http.StatusUnauthorized},
		{"basic scheme", "/snapshot", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong key", "/snapshot", "Bearer wrong-key", http.StatusUnauthorized},
		{"first key", "/snapshot", "Bearer key1", http.StatusOK},
		{"second key", "/refresh", "Bearer key2", http.StatusOK},
		{"health exempt", "/health", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", http.StatusOK},
		{"events query token", "/events?access_token=key1", "", http.StatusOK},
		{"events wrong query token", "/events?access_token=nope", "", http.StatusUnauthorized},
		{"query token only on events", "/snapshot?access_token=key1", "", http.StatusUnauthorized},
	}

	handler := BearerAuthMiddleware([]string{"key1", "key2"})(okHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var errResp dto.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != dto.ErrorCodeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, dto.ErrorCodeUnauthorized)
			}
		})
	}
}

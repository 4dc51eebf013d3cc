package lsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterTelemetryMetrics()
	os.Exit(m.Run())
}

func targetOf(t *testing.T, srv *httptest.Server, token string) domain.ConnectionTarget {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return domain.ConnectionTarget{Port: port, Token: token}
}

func newClient(timeout time.Duration) *Client {
	return NewClient(&Config{Timeout: timeout, Logger: zap.NewNop()})
}

func TestPing_SendsAuthenticatedRequest(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/exa.language_server_pb.LanguageServerService/GetUnleashData" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Codeium-Csrf-Token"); got != "secret" {
			t.Errorf("unexpected token header %q", got)
		}
		if got := r.Header.Get("Connect-Protocol-Version"); got != "1" {
			t.Errorf("unexpected protocol header %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "{}" {
			t.Errorf("unexpected body %q", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newClient(time.Second).Ping(context.Background(), targetOf(t, srv, "secret")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStatus_ReturnsBodyAndSendsMetadata(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exa.language_server_pb.LanguageServerService/GetUserStatus" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Metadata["ideName"] != "antigravity" || req.Metadata["locale"] != "en" ||
			req.Metadata["extensionName"] != "antigravity" {
			t.Errorf("unexpected metadata %v", req.Metadata)
		}
		_, _ = w.Write([]byte(`{"userStatus":{"name":"Dev"}}`))
	}))
	defer srv.Close()

	raw, err := newClient(time.Second).UserStatus(context.Background(), targetOf(t, srv, "t"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"userStatus":{"name":"Dev"}}` {
		t.Errorf("unexpected body %s", raw)
	}
}

func TestCall_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusInternalServerError, domain.ErrPayloadCorrupt},
		{http.StatusNotFound, domain.ErrPayloadCorrupt},
		{http.StatusForbidden, domain.ErrSignalLost},
		{http.StatusUnauthorized, domain.ErrSignalLost},
	}
	for _, tc := range tests {
		t.Run(strconv.Itoa(tc.status), func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := newClient(time.Second).UserStatus(context.Background(), targetOf(t, srv, "t"))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCall_ConnectionRefusedIsSignalLost(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := targetOf(t, srv, "t")
	srv.Close()

	err := newClient(time.Second).Ping(context.Background(), target)
	if !errors.Is(err, domain.ErrSignalLost) {
		t.Fatalf("expected ErrSignalLost, got %v", err)
	}
}

func TestCall_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	err := newClient(50*time.Millisecond).Ping(context.Background(), targetOf(t, srv, "t"))
	if !errors.Is(err, domain.ErrTransportTimeout) {
		t.Fatalf("expected ErrTransportTimeout, got %v", err)
	}
	if errors.Is(err, domain.ErrSignalLost) {
		t.Error("timeout must not invalidate the target")
	}
}

func TestCall_NotEngaged(t *testing.T) {
	_, err := newClient(time.Second).UserStatus(context.Background(), domain.ConnectionTarget{})
	if !errors.Is(err, domain.ErrNotEngaged) {
		t.Fatalf("expected ErrNotEngaged, got %v", err)
	}
}

func TestCall_CancelledIsNotClassified(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newClient(time.Second).Ping(ctx, targetOf(t, srv, "t"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrSignalLost) || errors.Is(err, domain.ErrTransportTimeout) {
		t.Errorf("cancellation misclassified: %v", err)
	}
}

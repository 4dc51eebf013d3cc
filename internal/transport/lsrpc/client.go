// Package lsrpc talks to the language server's local JSON RPC endpoint.
package lsrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
)

const (
	servicePath = "/exa.language_server_pb.LanguageServerService/"

	// MethodPing is the liveness method.
	MethodPing = "GetUnleashData"
	// MethodUserStatus returns identity, plan and per-model quota.
	MethodUserStatus = "GetUserStatus"

	headerToken    = "X-Codeium-Csrf-Token"
	headerProtocol = "Connect-Protocol-Version"

	maxBodyBytes = 8 << 20
)

// Config holds the RPC client settings.
type Config struct {
	Timeout       time.Duration // per request; 0 means 5s
	IDEName       string        // metadata.ideName, default "antigravity"
	ExtensionName string        // metadata.extensionName, default "antigravity"
	Locale        string        // metadata.locale, default "en"
	Logger        *zap.Logger
}

// Client is a language server RPC client. The server presents a self-signed
// certificate on loopback, so verification is skipped.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	metadata []byte
	logger   *zap.Logger
}

type requestMetadata struct {
	IDEName       string `json:"ideName"`
	ExtensionName string `json:"extensionName"`
	Locale        string `json:"locale"`
}

// NewClient creates an RPC client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	md := requestMetadata{
		IDEName:       orDefault(cfg.IDEName, "antigravity"),
		ExtensionName: orDefault(cfg.ExtensionName, "antigravity"),
		Locale:        orDefault(cfg.Locale, "en"),
	}
	body, _ := json.Marshal(struct {
		Metadata requestMetadata `json:"metadata"`
	}{md})

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tr := &http.Transport{
		Proxy:               nil,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // loopback self-signed
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Client{
		http:     &http.Client{Transport: tr},
		timeout:  timeout,
		metadata: body,
		logger:   logger,
	}
}

// Ping sends the liveness request. nil means HTTP 200.
func (c *Client) Ping(ctx context.Context, target domain.ConnectionTarget) error {
	_, err := c.call(ctx, target, MethodPing, []byte("{}"))
	return err
}

// UserStatus fetches the raw quota payload.
func (c *Client) UserStatus(ctx context.Context, target domain.ConnectionTarget) ([]byte, error) {
	return c.call(ctx, target, MethodUserStatus, c.metadata)
}

func (c *Client) call(ctx context.Context, target domain.ConnectionTarget, method string, body []byte) ([]byte, error) {
	if target.IsZero() {
		return nil, domain.ErrNotEngaged
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := "https://" + target.Addr() + servicePath + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerProtocol, "1")
	req.Header.Set(headerToken, target.Token)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, classify(method, err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	metrics.RPCRequestsTotal.WithLabelValues(method, status).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(method, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// A rejected token means the server restarted with a new one.
		return nil, fmt.Errorf("%s: status %d: %w", method, resp.StatusCode, domain.ErrSignalLost)
	default:
		c.logger.Debug("Unexpected RPC status",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(data, 256)),
		)
		return nil, fmt.Errorf("%s: status %d: %w", method, resp.StatusCode, domain.ErrPayloadCorrupt)
	}
}

// classify maps transport errors to the domain taxonomy: timeouts are
// transient; everything else at the connection level means the target is gone.
func classify(method string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", method, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %w", method, domain.ErrTransportTimeout, err)
	default:
		// refused, reset, EOF, TLS handshake on a recycled port
		return fmt.Errorf("%s: %w: %w", method, domain.ErrSignalLost, err)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/idtoken"
)

// URLResolver looks up a deployed service's base URL by name.
type URLResolver interface {
	ServiceURL(ctx context.Context, serviceName string) (string, error)
}

// HTTPConfig configures HTTPTransport.
type HTTPConfig struct {
	// Endpoints holds fixed URLs per capability.
	Endpoints map[Capability]string
	// Services names Cloud Run services whose URLs the Resolver looks up
	// for capabilities without a fixed endpoint.
	Services map[Capability]string
	Resolver URLResolver
	// Authenticate attaches a Google ID token for the endpoint audience.
	Authenticate bool
	Timeout      time.Duration
}

// HTTPTransport POSTs requests to capabilities deployed behind HTTP.
type HTTPTransport struct {
	cfg     HTTPConfig
	plain   *http.Client
	mu      sync.Mutex
	urls    map[Capability]string
	clients map[string]*http.Client
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	urls := make(map[Capability]string, len(cfg.Endpoints))
	for c, u := range cfg.Endpoints {
		urls[c] = u
	}
	return &HTTPTransport{
		cfg:     cfg,
		plain:   &http.Client{Timeout: cfg.Timeout},
		urls:    urls,
		clients: make(map[string]*http.Client),
	}
}

// Invoke sends body to the capability endpoint.
func (t *HTTPTransport) Invoke(ctx context.Context, c Capability, body []byte) ([]byte, error) {
	endpoint, err := t.endpoint(ctx, c)
	if err != nil {
		return nil, err
	}

	client, err := t.client(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, truncateBody(responseBody))
	}
	return responseBody, nil
}

func (t *HTTPTransport) endpoint(ctx context.Context, c Capability) (string, error) {
	t.mu.Lock()
	u, ok := t.urls[c]
	t.mu.Unlock()
	if ok {
		return u, nil
	}

	service, ok := t.cfg.Services[c]
	if !ok || t.cfg.Resolver == nil {
		return "", fmt.Errorf("no endpoint configured for %s", c)
	}
	u, err := t.cfg.Resolver.ServiceURL(ctx, service)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", c, err)
	}

	t.mu.Lock()
	t.urls[c] = u
	t.mu.Unlock()
	return u, nil
}

// client returns an ID-token client for the endpoint's origin, cached per
// audience, or the plain client when authentication is off.
func (t *HTTPTransport) client(ctx context.Context, endpoint string) (*http.Client, error) {
	if !t.cfg.Authenticate {
		return t.plain, nil
	}
	audience := audienceOf(endpoint)

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[audience]; ok {
		return c, nil
	}
	// the token source must outlive the first request's context
	c, err := idtoken.NewClient(context.WithoutCancel(ctx), audience)
	if err != nil {
		return nil, err
	}
	c.Timeout = t.cfg.Timeout
	t.clients[audience] = c
	return c, nil
}

func audienceOf(endpoint string) string {
	scheme, rest, ok := strings.Cut(endpoint, "://")
	if !ok {
		return endpoint
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

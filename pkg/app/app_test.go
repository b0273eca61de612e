package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spawn-mcp/campaign-synth/pkg/config"
	"github.com/spawn-mcp/campaign-synth/pkg/gateway"
	"github.com/spawn-mcp/campaign-synth/pkg/inference"
	"github.com/spawn-mcp/campaign-synth/pkg/store"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// failingInference reports an internal error on every call.
type failingInference struct{}

func (failingInference) Invoke(context.Context, inference.Request) (<-chan inference.Event, error) {
	ch := make(chan inference.Event, 1)
	ch <- inference.Event{Kind: inference.InternalError, Message: "model unavailable"}
	close(ch)
	return ch, nil
}

func capabilityServer(t *testing.T) (*httptest.Server, func() []string) {
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"product_id": "p1",
			"user_id":    "u1",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), calls...)
	}
}

func testConfig(endpoint string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Inference.APIKey = "test"
	cfg.Store.Backend = "memory"
	cfg.Retry.Unit = "1ms"
	cfg.Timeouts.InferenceReserve = "0s"
	cfg.Gateway.Endpoints = map[string]string{
		"image-analysis":        endpoint + "/image",
		"data-enrichment":       endpoint + "/enrich",
		"cultural-intelligence": endpoint + "/cultural",
	}
	return cfg
}

func TestNewWiresRunnableOrchestrator(t *testing.T) {
	srv, calls := capabilityServer(t)
	cfg := testConfig(srv.URL)
	require.NoError(t, cfg.Validate())

	mem := store.NewMemoryStore()
	mem.Put(store.Key{SubjectID: "p1", OwnerID: "u1"}, types.SubjectRecord{
		types.FieldProductName:   "Trail Bottle",
		types.FieldTargetMarkets: []any{"japan"},
	})

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t), Overrides{
		Inference: failingInference{},
		Store:     mem,
	})
	require.NoError(t, err)
	defer a.Close()

	out, err := a.Orchestrator.Synthesize(context.Background(), types.CampaignRequest{
		Product: types.Product{Name: "Trail Bottle"},
		OwnerID: "u1",
	})
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Equal(t, types.MethodTier2AggregatedFall, out.Method)
	assert.Equal(t, []string{"/image", "/enrich", "/cultural"}, calls())

	rec, err := mem.Get(context.Background(), store.Key{SubjectID: "p1", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "campaign_generated", rec[types.FieldStatus])
}

func TestNewBuildsGenAIServiceFromAPIKey(t *testing.T) {
	srv, _ := capabilityServer(t)

	a, err := New(context.Background(), testConfig(srv.URL), nil, Overrides{})
	require.NoError(t, err)
	require.NotNil(t, a.Orchestrator)
	assert.NoError(t, a.Close())
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Store.Backend = "cassandra"
	_, err := New(context.Background(), cfg, nil, Overrides{Inference: failingInference{}})
	assert.ErrorContains(t, err, "invalid store backend")

	cfg = testConfig("http://localhost")
	cfg.Gateway.Transport = "grpc"
	_, err = New(context.Background(), cfg, nil, Overrides{Inference: failingInference{}})
	assert.ErrorContains(t, err, "invalid gateway transport")
}

func TestNewUsesRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig("http://localhost")
	cfg.Store.Backend = "redis"
	cfg.Store.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, nil, Overrides{Inference: failingInference{}})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestByCapabilitySkipsUnknownNames(t *testing.T) {
	got := byCapability(map[string]string{
		"image-analysis":        "http://img",
		"analyze_product_image": "",
		"weather":               "http://nope",
		"cultural-intelligence": "http://culture",
	})
	assert.Len(t, got, 2)
	assert.Equal(t, "http://img", got[gateway.Image])
}

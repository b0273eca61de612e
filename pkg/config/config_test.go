package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryUnit())
	assert.Equal(t, 90*time.Second, cfg.InferenceTimeout())
	assert.Equal(t, 25*time.Second, cfg.InferenceReserve())
	assert.Equal(t, 5*time.Second, cfg.PollMaxElapsed())
	assert.Equal(t, "firestore", cfg.Store.Backend)
	assert.Equal(t, "products", cfg.Store.Collection)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  log_level: debug
store:
  backend: memory
gateway:
  transport: lambda
  lambda_functions:
    image-analysis: img-fn
timeouts:
  inference: 45s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "img-fn", cfg.Gateway.LambdaFunctions["image-analysis"])
	assert.Equal(t, 45*time.Second, cfg.InferenceTimeout())
	assert.Equal(t, 30*time.Second, cfg.SubcapabilityTimeout())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Inference.Backend)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj-1")
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("CAMPAIGN_STORE_BACKEND", "dynamodb")
	t.Setenv("DYNAMODB_TABLE_NAME", "campaign-products")
	t.Setenv("LAMBDA_CULTURAL_INTELLIGENCE", "cultural-fn")
	t.Setenv("OUTCOME_TOPIC", "outcomes")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", cfg.GCP.ProjectID)
	assert.Equal(t, "proj-1", cfg.Inference.Project)
	assert.Equal(t, "key-1", cfg.Inference.APIKey)
	assert.Equal(t, "dynamodb", cfg.Store.Backend)
	assert.Equal(t, "campaign-products", cfg.Store.Collection)
	assert.Equal(t, "cultural-fn", cfg.Gateway.LambdaFunctions["cultural-intelligence"])
	assert.Equal(t, "outcomes", cfg.PubSub.OutcomeTopic)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
	assert.Contains(t, err.Error(), "gcp.project_id")
	assert.Contains(t, err.Error(), "image-analysis")

	cfg.Inference.APIKey = "k"
	cfg.Store.Backend = "memory"
	cfg.Gateway.Endpoints = map[string]string{
		"image-analysis":        "http://img",
		"data-enrichment":       "http://enrich",
		"cultural-intelligence": "http://cultural",
	}
	assert.NoError(t, cfg.Validate())

	cfg.Timeouts.Inference = "soon"
	assert.ErrorContains(t, cfg.Validate(), "timeouts.inference")
}

func TestValidateLambda(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inference.APIKey = "k"
	cfg.Store.Backend = "redis"
	cfg.Store.RedisAddr = "localhost:6379"
	cfg.Gateway.Transport = "lambda"
	cfg.AWS.Region = "eu-west-1"
	cfg.Gateway.LambdaFunctions = map[string]string{
		"image-analysis":  "a",
		"data-enrichment": "b",
	}
	assert.ErrorContains(t, cfg.Validate(), "cultural-intelligence")

	cfg.Gateway.LambdaFunctions["cultural-intelligence"] = "c"
	assert.NoError(t, cfg.Validate())
}

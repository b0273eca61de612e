// Package config loads the service configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the campaign synthesis service.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Inference InferenceConfig `yaml:"inference"`
	Retry     RetryConfig     `yaml:"retry"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Store     StoreConfig     `yaml:"store"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	GCP       GCPConfig       `yaml:"gcp"`
	AWS       AWSConfig       `yaml:"aws"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Images    ImagesConfig    `yaml:"images"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServiceConfig names the service.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

// InferenceConfig selects the model backend.
type InferenceConfig struct {
	Backend         string  `yaml:"backend"` // gemini or vertex
	APIKey          string  `yaml:"api_key"`
	Project         string  `yaml:"project"`
	Location        string  `yaml:"location"`
	Model           string  `yaml:"model"`
	SynthesisModel  string  `yaml:"synthesis_model"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	MaxToolRounds   int     `yaml:"max_tool_rounds"`
	Temperature     float32 `yaml:"temperature"`
}

// RetryConfig tunes the rate-limit backoff.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	Unit       string `yaml:"unit"`
}

// TimeoutsConfig holds per-operation timeouts.
type TimeoutsConfig struct {
	Global           string `yaml:"global"`
	Inference        string `yaml:"inference"`
	Subcapability    string `yaml:"subcapability"`
	StoreRead        string `yaml:"store_read"`
	InferenceReserve string `yaml:"inference_reserve"`
}

// StoreConfig selects the aggregation store.
type StoreConfig struct {
	Backend        string `yaml:"backend"` // firestore, redis, dynamodb or memory
	Collection     string `yaml:"collection"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisPrefix    string `yaml:"redis_prefix"`
	PollMaxElapsed string `yaml:"poll_max_elapsed"`
}

// GatewayConfig describes how capabilities are reached. Maps are keyed by
// capability group name (image-analysis, data-enrichment,
// cultural-intelligence).
type GatewayConfig struct {
	Transport        string            `yaml:"transport"` // http or lambda
	Endpoints        map[string]string `yaml:"endpoints"`
	CloudRunServices map[string]string `yaml:"cloud_run_services"`
	LambdaFunctions  map[string]string `yaml:"lambda_functions"`
	Authenticate     bool              `yaml:"authenticate"`
	BreakerFailures  uint32            `yaml:"breaker_failures"`
	BreakerTimeout   string            `yaml:"breaker_timeout"`
}

// GCPConfig locates the Google Cloud project.
type GCPConfig struct {
	ProjectID string `yaml:"project_id"`
	Region    string `yaml:"region"`
}

// AWSConfig locates the AWS region.
type AWSConfig struct {
	Region string `yaml:"region"`
}

// PubSubConfig names the outcome topic; empty disables publishing.
type PubSubConfig struct {
	OutcomeTopic string `yaml:"outcome_topic"`
}

// ImagesConfig configures the object-store image locator; an empty endpoint
// disables it.
type ImagesConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	PresignTTL string `yaml:"presign_ttl"`
}

// MetricsConfig sets the Prometheus listen address; empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "campaign-synth",
			Environment: "production",
			LogLevel:    "info",
		},
		Inference: InferenceConfig{
			Backend:         "gemini",
			Location:        "us-central1",
			Model:           "gemini-2.5-flash",
			MaxOutputTokens: 8192,
			MaxToolRounds:   6,
			Temperature:     0.7,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			Unit:       "1s",
		},
		Timeouts: TimeoutsConfig{
			Global:           "5m",
			Inference:        "90s",
			Subcapability:    "30s",
			StoreRead:        "10s",
			InferenceReserve: "25s",
		},
		Store: StoreConfig{
			Backend:        "firestore",
			Collection:     "products",
			PollMaxElapsed: "5s",
		},
		Gateway: GatewayConfig{
			Transport:       "http",
			BreakerFailures: 5,
			BreakerTimeout:  "30s",
		},
		GCP: GCPConfig{
			Region: "us-central1",
		},
		Images: ImagesConfig{
			PresignTTL: "15m",
		},
	}
}

// Load reads path (when non-empty and present) over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		c.GCP.ProjectID = v
		if c.Inference.Project == "" {
			c.Inference.Project = v
		}
	}
	if v := os.Getenv("GOOGLE_CLOUD_REGION"); v != "" {
		c.GCP.Region = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Inference.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("CAMPAIGN_MODEL"); v != "" {
		c.Inference.Model = v
	}
	if v := os.Getenv("CAMPAIGN_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.AWS.Region = v
	}
	if v := os.Getenv("DYNAMODB_TABLE_NAME"); v != "" {
		c.Store.Collection = v
	}

	for env, group := range map[string]string{
		"LAMBDA_IMAGE_ANALYSIS":        "image-analysis",
		"LAMBDA_DATA_ENRICHMENT":       "data-enrichment",
		"LAMBDA_CULTURAL_INTELLIGENCE": "cultural-intelligence",
	} {
		if v := os.Getenv(env); v != "" {
			if c.Gateway.LambdaFunctions == nil {
				c.Gateway.LambdaFunctions = map[string]string{}
			}
			c.Gateway.LambdaFunctions[group] = v
		}
	}

	if v := os.Getenv("OUTCOME_TOPIC"); v != "" {
		c.PubSub.OutcomeTopic = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Service.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("CAMPAIGN_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxRetries = n
		}
	}
}

// Capability group names used as map keys in GatewayConfig.
var capabilityGroups = []string{"image-analysis", "data-enrichment", "cultural-intelligence"}

// Validate reports every missing or malformed setting for the selected
// backends.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Inference.Backend {
	case "gemini":
		if c.Inference.APIKey == "" {
			add("inference API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")
		}
	case "vertex":
		if c.Inference.Project == "" || c.Inference.Location == "" {
			add("vertex inference needs project and location")
		}
	default:
		add("invalid inference backend: %q (valid: gemini, vertex)", c.Inference.Backend)
	}

	switch c.Store.Backend {
	case "firestore":
		if c.GCP.ProjectID == "" {
			add("firestore store needs gcp.project_id (GOOGLE_CLOUD_PROJECT)")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			add("redis store needs store.redis_addr (REDIS_ADDR)")
		}
	case "dynamodb":
		if c.AWS.Region == "" {
			add("dynamodb store needs aws.region (AWS_REGION)")
		}
		if c.Store.Collection == "" {
			add("dynamodb store needs store.collection (DYNAMODB_TABLE_NAME)")
		}
	case "memory":
	default:
		add("invalid store backend: %q (valid: firestore, redis, dynamodb, memory)", c.Store.Backend)
	}

	switch c.Gateway.Transport {
	case "http":
		for _, g := range capabilityGroups {
			_, fixed := c.Gateway.Endpoints[g]
			_, service := c.Gateway.CloudRunServices[g]
			if !fixed && !service {
				add("gateway has no endpoint or cloud run service for %s", g)
			}
			if !fixed && service && c.GCP.ProjectID == "" {
				add("cloud run service lookup for %s needs gcp.project_id", g)
			}
		}
	case "lambda":
		if c.AWS.Region == "" {
			add("lambda transport needs aws.region (AWS_REGION)")
		}
		for _, g := range capabilityGroups {
			if c.Gateway.LambdaFunctions[g] == "" {
				add("gateway has no lambda function for %s", g)
			}
		}
	default:
		add("invalid gateway transport: %q (valid: http, lambda)", c.Gateway.Transport)
	}

	if c.PubSub.OutcomeTopic != "" && c.GCP.ProjectID == "" {
		add("outcome publishing needs gcp.project_id")
	}

	for name, v := range map[string]string{
		"retry.unit":                 c.Retry.Unit,
		"timeouts.global":            c.Timeouts.Global,
		"timeouts.inference":         c.Timeouts.Inference,
		"timeouts.subcapability":     c.Timeouts.Subcapability,
		"timeouts.store_read":        c.Timeouts.StoreRead,
		"timeouts.inference_reserve": c.Timeouts.InferenceReserve,
		"store.poll_max_elapsed":     c.Store.PollMaxElapsed,
		"gateway.breaker_timeout":    c.Gateway.BreakerTimeout,
		"images.presign_ttl":         c.Images.PresignTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			add("%s: invalid duration %q", name, v)
		}
	}
	if c.Retry.MaxRetries < 0 {
		add("retry.max_retries must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// RetryUnit returns the backoff time unit.
func (c *Config) RetryUnit() time.Duration { return duration(c.Retry.Unit, time.Second) }

// GlobalTimeout returns the fallback timeout for unnamed operations.
func (c *Config) GlobalTimeout() time.Duration { return duration(c.Timeouts.Global, 5*time.Minute) }

// InferenceTimeout bounds one inference call.
func (c *Config) InferenceTimeout() time.Duration {
	return duration(c.Timeouts.Inference, 90*time.Second)
}

// SubcapabilityTimeout bounds one capability call.
func (c *Config) SubcapabilityTimeout() time.Duration {
	return duration(c.Timeouts.Subcapability, 30*time.Second)
}

// StoreReadTimeout bounds the read-back of the subject record.
func (c *Config) StoreReadTimeout() time.Duration {
	return duration(c.Timeouts.StoreRead, 10*time.Second)
}

// InferenceReserve is the minimum remaining deadline for starting inference.
func (c *Config) InferenceReserve() time.Duration {
	return duration(c.Timeouts.InferenceReserve, 25*time.Second)
}

// PollMaxElapsed bounds polling an eventually consistent store.
func (c *Config) PollMaxElapsed() time.Duration {
	return duration(c.Store.PollMaxElapsed, 5*time.Second)
}

// BreakerTimeout is how long an open circuit stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return duration(c.Gateway.BreakerTimeout, 30*time.Second)
}

// PresignTTL is the validity of presigned image URLs.
func (c *Config) PresignTTL() time.Duration { return duration(c.Images.PresignTTL, 15*time.Minute) }

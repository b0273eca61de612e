// Package app wires the orchestrator and its collaborators from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/config"
	"github.com/spawn-mcp/campaign-synth/pkg/gateway"
	"github.com/spawn-mcp/campaign-synth/pkg/gcp"
	"github.com/spawn-mcp/campaign-synth/pkg/imageref"
	"github.com/spawn-mcp/campaign-synth/pkg/inference"
	"github.com/spawn-mcp/campaign-synth/pkg/logger"
	"github.com/spawn-mcp/campaign-synth/pkg/orchestrator"
	"github.com/spawn-mcp/campaign-synth/pkg/retry"
	"github.com/spawn-mcp/campaign-synth/pkg/store"
	"github.com/spawn-mcp/campaign-synth/pkg/timeout"
)

// App owns the long-lived clients behind one Orchestrator.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Orchestrator *orchestrator.Orchestrator

	closers []func() error
}

// Overrides replace collaborators that New would otherwise build from
// configuration.
type Overrides struct {
	Inference inference.Service
	Transport gateway.Transport
	Store     store.Store
}

// New builds every collaborator the configuration selects.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, ov Overrides) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Logger: log}

	deps, err := a.wire(ctx, ov)
	if err != nil {
		a.Close()
		return nil, err
	}

	orch, err := orchestrator.New(deps, orchestrator.Options{
		Retry: retry.NewRateLimitConfig(cfg.RetryUnit(), cfg.Retry.MaxRetries),
		Poll: store.PollConfig{
			Initial:     store.DefaultPollConfig.Initial,
			MaxInterval: store.DefaultPollConfig.MaxInterval,
			MaxElapsed:  cfg.PollMaxElapsed(),
		},
		Tier1Model:     cfg.Inference.Model,
		SynthesisModel: cfg.Inference.SynthesisModel,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch

	log.Info("Campaign synthesis wired",
		zap.String("store", cfg.Store.Backend),
		zap.String("transport", cfg.Gateway.Transport),
		zap.String("inference", cfg.Inference.Backend),
		zap.Bool("publish", deps.Publisher != nil),
		zap.Bool("image_locator", deps.Locator != nil))
	return a, nil
}

func (a *App) wire(ctx context.Context, ov Overrides) (orchestrator.Deps, error) {
	cfg := a.Config

	tm := timeout.NewManager(cfg.GlobalTimeout(), cfg.InferenceReserve())
	tm.SetOperationTimeout(timeout.OpInference, cfg.InferenceTimeout())
	tm.SetOperationTimeout(timeout.OpSubcapability, cfg.SubcapabilityTimeout())
	tm.SetOperationTimeout(timeout.OpStoreRead, cfg.StoreReadTimeout())

	deps := orchestrator.Deps{Timeouts: tm, Logger: a.Logger}

	gcpClient, err := a.gcpClient(ctx, ov)
	if err != nil {
		return deps, err
	}

	var awsSession *session.Session
	if (ov.Store == nil && cfg.Store.Backend == "dynamodb") || (ov.Transport == nil && cfg.Gateway.Transport == "lambda") {
		awsSession, err = session.NewSession(&aws.Config{Region: aws.String(cfg.AWS.Region)})
		if err != nil {
			return deps, fmt.Errorf("failed to create AWS session: %w", err)
		}
	}

	if deps.Store, err = a.store(ov, gcpClient, awsSession); err != nil {
		return deps, err
	}

	transport, err := a.transport(ov, gcpClient, awsSession)
	if err != nil {
		return deps, err
	}
	deps.Gateway = gateway.New(transport,
		gateway.WithLogger(a.Logger),
		gateway.WithTimeouts(tm),
		gateway.WithBreakers(gateway.BreakerSettings{
			ConsecutiveFailures: cfg.Gateway.BreakerFailures,
			OpenTimeout:         cfg.BreakerTimeout(),
		}),
	)

	if deps.Inference, err = a.inference(ctx, ov); err != nil {
		return deps, err
	}

	if cfg.Images.Endpoint != "" {
		loc, err := imageref.New(imageref.Config{
			Endpoint:   cfg.Images.Endpoint,
			AccessKey:  cfg.Images.AccessKey,
			SecretKey:  cfg.Images.SecretKey,
			UseSSL:     cfg.Images.UseSSL,
			Region:     cfg.Images.Region,
			PresignTTL: cfg.PresignTTL(),
		})
		if err != nil {
			return deps, err
		}
		deps.Locator = loc
	}

	if cfg.PubSub.OutcomeTopic != "" && gcpClient != nil {
		pub := gcp.NewOutcomePublisher(gcpClient.PubSubClient, cfg.PubSub.OutcomeTopic)
		a.closers = append(a.closers, func() error { pub.Stop(); return nil })
		deps.Publisher = pub
	}
	return deps, nil
}

// gcpClient creates only the GCP clients the configuration needs, or nil.
func (a *App) gcpClient(ctx context.Context, ov Overrides) (*gcp.Client, error) {
	cfg := a.Config
	want := gcp.Services{
		Firestore: ov.Store == nil && cfg.Store.Backend == "firestore",
		PubSub:    cfg.PubSub.OutcomeTopic != "",
		Run:       ov.Transport == nil && cfg.Gateway.Transport == "http" && len(cfg.Gateway.CloudRunServices) > 0,
	}
	if want == (gcp.Services{}) {
		return nil, nil
	}
	client, err := gcp.NewClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Region, want)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) store(ov Overrides, gcpClient *gcp.Client, sess *session.Session) (store.Store, error) {
	if ov.Store != nil {
		return ov.Store, nil
	}
	cfg := a.Config
	switch cfg.Store.Backend {
	case "firestore":
		return store.NewFirestoreStore(gcpClient.FirestoreClient, cfg.Store.Collection), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		return store.NewRedisStore(client, cfg.Store.RedisPrefix), nil
	case "dynamodb":
		return store.NewDynamoStore(dynamodb.New(sess), cfg.Store.Collection), nil
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("invalid store backend: %q", cfg.Store.Backend)
}

func (a *App) transport(ov Overrides, gcpClient *gcp.Client, sess *session.Session) (gateway.Transport, error) {
	if ov.Transport != nil {
		return ov.Transport, nil
	}
	cfg := a.Config
	switch cfg.Gateway.Transport {
	case "http":
		hc := gateway.HTTPConfig{
			Endpoints:    byCapability(cfg.Gateway.Endpoints),
			Services:     byCapability(cfg.Gateway.CloudRunServices),
			Authenticate: cfg.Gateway.Authenticate,
			Timeout:      cfg.SubcapabilityTimeout(),
		}
		if gcpClient != nil && gcpClient.RunClient != nil {
			hc.Resolver = gcpClient
		}
		return gateway.NewHTTPTransport(hc), nil
	case "lambda":
		return gateway.NewLambdaTransport(lambda.New(sess), byCapability(cfg.Gateway.LambdaFunctions)), nil
	}
	return nil, fmt.Errorf("invalid gateway transport: %q", cfg.Gateway.Transport)
}

func (a *App) inference(ctx context.Context, ov Overrides) (inference.Service, error) {
	if ov.Inference != nil {
		return ov.Inference, nil
	}
	cfg := a.Config.Inference
	client, err := inference.NewClient(ctx, inference.ClientConfig{
		APIKey:   cfg.APIKey,
		Vertex:   cfg.Backend == "vertex",
		Project:  cfg.Project,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, err
	}
	return inference.NewGenAIService(client.Models, inference.GenAIOptions{
		Model:           cfg.Model,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		MaxToolRounds:   cfg.MaxToolRounds,
		Logger:          a.Logger,
	}), nil
}

func byCapability(m map[string]string) map[gateway.Capability]string {
	out := make(map[gateway.Capability]string, len(m))
	for name, v := range m {
		if c, ok := gateway.ParseCapability(name); ok && v != "" {
			out[c] = v
		}
	}
	return out
}

// Close releases every client New created, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("errors closing app: %v", errs)
	}
	return nil
}

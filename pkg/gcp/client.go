package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	run "cloud.google.com/go/run/apiv2"
	runpb "cloud.google.com/go/run/apiv2/runpb"
	"google.golang.org/api/option"
)

// Client wraps the GCP service clients the orchestrator uses
type Client struct {
	ProjectID       string
	Region          string
	RunClient       *run.ServicesClient
	FirestoreClient *firestore.Client
	PubSubClient    *pubsub.Client
}

// Services selects which clients NewClient creates
type Services struct {
	Run       bool
	Firestore bool
	PubSub    bool
}

// NewClient creates a GCP client with the requested services
func NewClient(ctx context.Context, projectID, region string, want Services, opts ...option.ClientOption) (*Client, error) {
	c := &Client{ProjectID: projectID, Region: region}

	if want.Run {
		runClient, err := run.NewServicesClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Cloud Run client: %w", err)
		}
		c.RunClient = runClient
	}

	if want.Firestore {
		firestoreClient, err := firestore.NewClient(ctx, projectID, opts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		c.FirestoreClient = firestoreClient
	}

	if want.PubSub {
		pubsubClient, err := pubsub.NewClient(ctx, projectID, opts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
		}
		c.PubSubClient = pubsubClient
	}

	return c, nil
}

// Close closes all GCP clients
func (c *Client) Close() error {
	var errs []error

	if c.RunClient != nil {
		if err := c.RunClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Cloud Run client: %w", err))
		}
	}

	if c.FirestoreClient != nil {
		if err := c.FirestoreClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Firestore client: %w", err))
		}
	}

	if c.PubSubClient != nil {
		if err := c.PubSubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Pub/Sub client: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing clients: %v", errs)
	}

	return nil
}

// ServiceURL retrieves the URL of a deployed Cloud Run service
func (c *Client) ServiceURL(ctx context.Context, serviceName string) (string, error) {
	if c.RunClient == nil {
		return "", fmt.Errorf("cloud run client not configured")
	}
	req := &runpb.GetServiceRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/services/%s", c.ProjectID, c.Region, serviceName),
	}

	service, err := c.RunClient.GetService(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get service: %w", err)
	}

	if service.Uri == "" {
		return "", fmt.Errorf("service URL not available yet")
	}

	return service.Uri, nil
}

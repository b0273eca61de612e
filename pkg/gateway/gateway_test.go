package gateway

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spawn-mcp/campaign-synth/pkg/timeout"
)

func TestInvokeEncodesActionGroupRequest(t *testing.T) {
	var seen []byte
	g := New(FuncTransport(func(ctx context.Context, c Capability, body []byte) ([]byte, error) {
		seen = body
		return []byte(`{"success": true, "product_id": "p-1", "user_id": "u-1"}`), nil
	}))

	res := g.Invoke(context.Background(), Cultural, Payload{
		"product_id":     "p-1",
		"target_markets": []string{"japan"},
		"skip":           nil,
	})
	require.True(t, res.Success)

	group, fn, params, err := DecodeRequest(seen)
	require.NoError(t, err)
	assert.Equal(t, "cultural-intelligence", group)
	assert.Equal(t, "analyze_cultural_insights", fn)
	assert.Equal(t, map[string]string{"product_id": "p-1", "target_markets": `["japan"]`}, params)
}

func TestInvokeTurnsTransportErrorsIntoFailures(t *testing.T) {
	g := New(FuncTransport(func(context.Context, Capability, []byte) ([]byte, error) {
		return nil, stderrors.New("connection refused")
	}))

	res := g.Invoke(context.Background(), Image, Payload{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")

	res = New(FuncTransport(func(context.Context, Capability, []byte) ([]byte, error) {
		return []byte("<html>"), nil
	})).Invoke(context.Background(), Image, Payload{})
	assert.False(t, res.Success)
}

func TestInvokeOpensBreakerPerCapability(t *testing.T) {
	var calls atomic.Int32
	g := New(FuncTransport(func(ctx context.Context, c Capability, _ []byte) ([]byte, error) {
		calls.Add(1)
		if c == Enrichment {
			return nil, stderrors.New("down")
		}
		return []byte(`{"success": true}`), nil
	}), WithBreakers(BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}))

	for i := 0; i < 4; i++ {
		g.Invoke(context.Background(), Enrichment, Payload{})
	}
	assert.Equal(t, int32(2), calls.Load())

	res := g.Invoke(context.Background(), Enrichment, Payload{})
	assert.Contains(t, res.Error, "circuit open")

	assert.True(t, g.Invoke(context.Background(), Cultural, Payload{}).Success)
}

func TestInvokeAppliesSubcapabilityTimeout(t *testing.T) {
	tm := timeout.NewManager(time.Minute, 0)
	tm.SetOperationTimeout(timeout.OpSubcapability, 10*time.Millisecond)

	g := New(FuncTransport(func(ctx context.Context, _ Capability, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), WithTimeouts(tm))

	res := g.Invoke(context.Background(), Image, Payload{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestCapabilityNames(t *testing.T) {
	assert.Equal(t, "image-analysis", Image.String())
	assert.Equal(t, "enrich_campaign_data", Enrichment.Function())
	assert.True(t, Image.Fatal())
	assert.False(t, Cultural.Fatal())

	c, ok := ParseCapability("analyze_cultural_insights")
	require.True(t, ok)
	assert.Equal(t, Cultural, c)
	_, ok = ParseCapability("nope")
	assert.False(t, ok)
}

type stubResolver struct {
	url   string
	calls int
}

func (s *stubResolver) ServiceURL(context.Context, string) (string, error) {
	s.calls++
	return s.url, nil
}

func TestHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		if string(body) == "fail" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream"))
			return
		}
		_, _ = w.Write([]byte(`{"statusCode": 200, "body": "{\"success\": true}"}`))
	}))
	defer srv.Close()

	resolver := &stubResolver{url: srv.URL}
	tr := NewHTTPTransport(HTTPConfig{
		Endpoints: map[Capability]string{Image: srv.URL},
		Services:  map[Capability]string{Cultural: "cultural-svc"},
		Resolver:  resolver,
	})

	out, err := tr.Invoke(context.Background(), Image, []byte(`{}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), "statusCode")

	_, err = tr.Invoke(context.Background(), Image, []byte("fail"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error 502")

	_, err = tr.Invoke(context.Background(), Cultural, []byte(`{}`))
	require.NoError(t, err)
	_, err = tr.Invoke(context.Background(), Cultural, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)

	_, err = tr.Invoke(context.Background(), Enrichment, []byte(`{}`))
	assert.ErrorContains(t, err, "no endpoint configured")
}

func TestAudienceOf(t *testing.T) {
	assert.Equal(t, "https://svc-abc.a.run.app", audienceOf("https://svc-abc.a.run.app/invoke?x=1"))
	assert.Equal(t, "plain", audienceOf("plain"))
}

type fakeLambda struct {
	lambdaiface.LambdaAPI
	InvokeFunc func(*lambda.InvokeInput) (*lambda.InvokeOutput, error)
	CallCount  int
}

func (f *fakeLambda) InvokeWithContext(_ aws.Context, in *lambda.InvokeInput, _ ...request.Option) (*lambda.InvokeOutput, error) {
	f.CallCount++
	return f.InvokeFunc(in)
}

func TestLambdaTransport(t *testing.T) {
	fake := &fakeLambda{InvokeFunc: func(in *lambda.InvokeInput) (*lambda.InvokeOutput, error) {
		assert.Equal(t, lambda.InvocationTypeRequestResponse, aws.StringValue(in.InvocationType))
		switch aws.StringValue(in.FunctionName) {
		case "image-fn":
			return &lambda.InvokeOutput{StatusCode: aws.Int64(200), Payload: []byte(`{"success": true}`)}, nil
		case "enrich-fn":
			return &lambda.InvokeOutput{StatusCode: aws.Int64(200), FunctionError: aws.String("Unhandled"), Payload: []byte(`{"errorMessage":"boom"}`)}, nil
		default:
			return &lambda.InvokeOutput{StatusCode: aws.Int64(202)}, nil
		}
	}}

	tr := NewLambdaTransport(fake, map[Capability]string{
		Image:      "image-fn",
		Enrichment: "enrich-fn",
		Cultural:   "cultural-fn",
	})

	out, err := tr.Invoke(context.Background(), Image, []byte(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true}`, string(out))

	_, err = tr.Invoke(context.Background(), Enrichment, []byte(`{}`))
	assert.ErrorContains(t, err, "Unhandled")

	_, err = tr.Invoke(context.Background(), Cultural, []byte(`{}`))
	assert.ErrorContains(t, err, "status 202")
	assert.Equal(t, 3, fake.CallCount)

	_, err = NewLambdaTransport(fake, nil).Invoke(context.Background(), Image, nil)
	assert.ErrorContains(t, err, "no function configured")
}

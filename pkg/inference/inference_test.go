package inference

import (
	"context"
	stderrors "errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// started by an init in opencensus, pulled in through the GCP clients
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func events(evs ...Event) <-chan Event {
	ch := make(chan Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestCollectConcatenatesChunks(t *testing.T) {
	text, err := Collect(context.Background(), events(
		Event{Kind: Chunk, Text: `{"a":`},
		Event{Kind: Chunk, Text: ` 1}`},
	))
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, text)
}

func TestCollectMapsErrorEvents(t *testing.T) {
	tests := []struct {
		kind EventKind
		code string
	}{
		{InternalError, cerrors.ErrServiceUnavailable},
		{ValidationError, cerrors.ErrUpstreamValidation},
		{RateLimit, cerrors.ErrRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			_, err := Collect(context.Background(), events(
				Event{Kind: Chunk, Text: "partial"},
				Event{Kind: tt.kind, Message: "nope"},
			))
			require.Error(t, err)
			assert.Equal(t, tt.code, cerrors.CodeOf(err))
		})
	}
}

func TestCollectHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, make(chan Event))
	assert.ErrorIs(t, err, context.Canceled)
}

// scriptedModels answers each GenerateContentStream call with the next round.
type scriptedModels struct {
	rounds    [][]*genai.GenerateContentResponse
	errs      []error
	calls     int
	contents  [][]*genai.Content
	lastTools []*genai.Tool
}

func (s *scriptedModels) GenerateContentStream(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	i := s.calls
	s.calls++
	s.contents = append(s.contents, contents)
	s.lastTools = cfg.Tools
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if i < len(s.errs) && s.errs[i] != nil {
			yield(nil, s.errs[i])
			return
		}
		if i >= len(s.rounds) {
			return
		}
		for _, r := range s.rounds[i] {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts(parts, genai.RoleModel),
	}}}
}

func TestGenAIServiceStreamsText(t *testing.T) {
	models := &scriptedModels{rounds: [][]*genai.GenerateContentResponse{{
		response(genai.NewPartFromText("hello ")),
		response(genai.NewPartFromText("world")),
	}}}
	svc := NewGenAIService(models, GenAIOptions{})

	ch, err := svc.Invoke(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	text, err := Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Nil(t, models.lastTools)
}

func TestGenAIServiceRunsToolLoop(t *testing.T) {
	call := &genai.Part{FunctionCall: &genai.FunctionCall{
		ID:   "call-1",
		Name: "analyze_product_image",
		Args: map[string]any{"product_id": "p-1"},
	}}
	models := &scriptedModels{rounds: [][]*genai.GenerateContentResponse{
		{response(call)},
		{response(genai.NewPartFromText(`{"done": true}`))},
	}}

	var gotArgs map[string]any
	svc := NewGenAIService(models, GenAIOptions{})
	ch, err := svc.Invoke(context.Background(), Request{
		Prompt: "make a campaign",
		Tools: []Tool{{
			Name:   "analyze_product_image",
			Params: []Param{{Name: "product_id", Required: true}},
			Handler: func(_ context.Context, args map[string]any) map[string]any {
				gotArgs = args
				return map[string]any{"success": true}
			},
		}},
	})
	require.NoError(t, err)

	text, err := Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, `{"done": true}`, text)
	assert.Equal(t, "p-1", gotArgs["product_id"])
	require.Equal(t, 2, models.calls)

	second := models.contents[1]
	require.Len(t, second, 3)
	assert.EqualValues(t, genai.RoleModel, second[1].Role)
	reply := second[2].Parts[0].FunctionResponse
	require.NotNil(t, reply)
	assert.Equal(t, "call-1", reply.ID)
	assert.Equal(t, true, reply.Response["success"])

	require.Len(t, models.lastTools, 1)
	decl := models.lastTools[0].FunctionDeclarations[0]
	assert.Equal(t, []string{"product_id"}, decl.Parameters.Required)
}

func TestGenAIServiceStopsAtToolRoundLimit(t *testing.T) {
	call := &genai.Part{FunctionCall: &genai.FunctionCall{Name: "missing"}}
	models := &scriptedModels{rounds: [][]*genai.GenerateContentResponse{
		{response(call)}, {response(call)}, {response(call)},
	}}
	svc := NewGenAIService(models, GenAIOptions{MaxToolRounds: 1})

	ch, err := svc.Invoke(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	_, err = Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 2, models.calls)
}

func TestGenAIServiceClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"rate limit", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, cerrors.ErrRateLimit},
		{"validation", genai.APIError{Code: 400}, cerrors.ErrUpstreamValidation},
		{"server", genai.APIError{Code: 503}, cerrors.ErrServiceUnavailable},
		{"other", stderrors.New("socket closed"), cerrors.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewGenAIService(&scriptedModels{errs: []error{tt.err}}, GenAIOptions{})
			ch, err := svc.Invoke(context.Background(), Request{Prompt: "x"})
			require.NoError(t, err)
			_, err = Collect(context.Background(), ch)
			assert.Equal(t, tt.code, cerrors.CodeOf(err))
		})
	}
}

func TestGenAIServiceRejectsEmptyPrompt(t *testing.T) {
	_, err := NewGenAIService(&scriptedModels{}, GenAIOptions{}).Invoke(context.Background(), Request{Prompt: " "})
	assert.Error(t, err)
}

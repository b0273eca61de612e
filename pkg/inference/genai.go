package inference

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spawn-mcp/campaign-synth/pkg/logger"
)

// ClientConfig selects the Gemini backend.
type ClientConfig struct {
	APIKey   string
	Vertex   bool
	Project  string
	Location string
}

// NewClient creates a genai client for the Gemini API or Vertex AI.
func NewClient(ctx context.Context, cfg ClientConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
	if cfg.Vertex {
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// ContentStreamer is the part of genai.Models the service uses.
type ContentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GenAIOptions tunes GenAIService.
type GenAIOptions struct {
	Model           string
	MaxOutputTokens int32
	Temperature     float32
	// MaxToolRounds bounds how many times tool replies are fed back.
	MaxToolRounds int
	Logger        *zap.Logger
}

// GenAIService streams Gemini generations and runs the function-calling loop.
type GenAIService struct {
	models ContentStreamer
	opts   GenAIOptions
	logger *zap.Logger
}

// NewGenAIService creates a service over models, usually client.Models.
func NewGenAIService(models ContentStreamer, opts GenAIOptions) *GenAIService {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 6
	}
	return &GenAIService{models: models, opts: opts, logger: logger.OrNop(opts.Logger)}
}

// Invoke implements Service.
func (s *GenAIService) Invoke(ctx context.Context, req Request) (<-chan Event, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}
	model := req.Model
	if model == "" {
		model = s.opts.Model
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		s.run(ctx, model, req, out)
	}()
	return out, nil
}

func (s *GenAIService) config(tools []Tool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if s.opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = s.opts.MaxOutputTokens
	}
	if s.opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(s.opts.Temperature)
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, declaration(t))
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func declaration(t Tool) *genai.FunctionDeclaration {
	schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	for _, p := range t.Params {
		schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: schema}
}

func (s *GenAIService) run(ctx context.Context, model string, req Request, out chan<- Event) {
	cfg := s.config(req.Tools)
	handlers := make(map[string]ToolHandler, len(req.Tools))
	for _, t := range req.Tools {
		handlers[t.Name] = t.Handler
	}

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	for round := 0; ; round++ {
		var (
			modelParts []*genai.Part
			calls      []*genai.FunctionCall
		)
		for resp, err := range s.models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				if ctx.Err() == nil {
					send(classify(err))
				}
				return
			}
			for _, p := range firstCandidateParts(resp) {
				switch {
				case p.FunctionCall != nil:
					calls = append(calls, p.FunctionCall)
					modelParts = append(modelParts, p)
				case p.Text != "" && !p.Thought:
					modelParts = append(modelParts, p)
					if !send(Event{Kind: Chunk, Text: p.Text}) {
						return
					}
				}
			}
		}

		if len(calls) == 0 {
			return
		}
		if round >= s.opts.MaxToolRounds {
			s.logger.Warn("Tool round limit reached", zap.Int("rounds", round), zap.String("model", model))
			return
		}

		replies := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			replies = append(replies, s.callTool(ctx, handlers, call))
		}
		contents = append(contents,
			genai.NewContentFromParts(modelParts, genai.RoleModel),
			genai.NewContentFromParts(replies, genai.RoleUser),
		)
	}
}

func (s *GenAIService) callTool(ctx context.Context, handlers map[string]ToolHandler, call *genai.FunctionCall) *genai.Part {
	var result map[string]any
	if h, ok := handlers[call.Name]; ok && h != nil {
		result = h(ctx, call.Args)
	} else {
		result = map[string]any{"success": false, "error": "unknown tool " + call.Name}
	}
	s.logger.Debug("Tool call answered", zap.String("tool", call.Name))

	part := genai.NewPartFromFunctionResponse(call.Name, result)
	part.FunctionResponse.ID = call.ID
	return part
}

func firstCandidateParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	return c.Content.Parts
}

// classify maps a genai error onto a stream error event.
func classify(err error) Event {
	code, status := 0, ""
	var apiErr genai.APIError
	var apiPtr *genai.APIError
	switch {
	case stderrors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case stderrors.As(err, &apiPtr) && apiPtr != nil:
		code, status = apiPtr.Code, apiPtr.Status
	}

	ev := Event{Message: err.Error()}
	switch {
	case code == 429 || status == "RESOURCE_EXHAUSTED":
		ev.Kind = RateLimit
	case code == 400 || status == "INVALID_ARGUMENT":
		ev.Kind = ValidationError
	default:
		ev.Kind = InternalError
	}
	return ev
}

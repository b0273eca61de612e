package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/logger"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// Synthesizer produces a campaign for a canonical request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req types.CampaignRequest) (*types.Outcome, error)
}

// MCPServer exposes campaign synthesis over the MCP protocol
type MCPServer struct {
	synth     Synthesizer
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewMCPServer creates a new MCP server backed by synth
func NewMCPServer(synth Synthesizer, log *zap.Logger) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Campaign Synthesis",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		synth:     synth,
		mcpServer: mcpServer,
		logger:    logger.OrNop(log),
	}

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	synthesize := mcp.NewTool("synthesize_campaign",
		mcp.WithDescription("Generate a structured marketing campaign for a product. "+
			"Pass the whole request as request_json, or use the individual fields."),
		mcp.WithString("request_json",
			mcp.Description("JSON-encoded campaign request; legacy field names are accepted"),
		),
		mcp.WithString("product_name",
			mcp.Description("Name of the product"),
		),
		mcp.WithString("product_description",
			mcp.Description("Short product description"),
		),
		mcp.WithString("product_category",
			mcp.Description("Product category"),
		),
		mcp.WithString("s3_bucket",
			mcp.Description("Bucket holding the product image"),
		),
		mcp.WithString("s3_key",
			mcp.Description("Object key of the product image"),
		),
		mcp.WithString("target_markets",
			mcp.Description("Comma-separated target markets"),
		),
		mcp.WithString("objectives",
			mcp.Description("Comma-separated campaign objectives"),
		),
		mcp.WithString("budget_range",
			mcp.Description("Budget range, e.g. 10000-50000"),
		),
		mcp.WithString("timeline",
			mcp.Description("Campaign duration"),
		),
		mcp.WithString("owner_id",
			mcp.Description("Owner of the product record"),
		),
	)
	s.mcpServer.AddTool(synthesize, s.handleSynthesizeCampaign)

	schema := mcp.NewTool("campaign_schema",
		mcp.WithDescription("Describe the sections every generated campaign carries"),
	)
	s.mcpServer.AddTool(schema, s.handleCampaignSchema)

	validate := mcp.NewTool("validate_campaign",
		mcp.WithDescription("Check a campaign document against the required sections"),
		mcp.WithString("campaign_json",
			mcp.Required(),
			mcp.Description("JSON-encoded campaign document"),
		),
	)
	s.mcpServer.AddTool(validate, s.handleValidateCampaign)

	guide := mcp.NewTool("get_guide",
		mcp.WithDescription("Get usage guides. Use 'list' as name to see all available guides."),
		mcp.WithString("name",
			mcp.Description("Guide name: 'request', 'methods', 'sections', or 'list'"),
		),
	)
	s.mcpServer.AddTool(guide, s.handleGetGuide)
}

// Start serves MCP over stdio until the client disconnects
func (s *MCPServer) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server")
	return server.ServeStdio(s.mcpServer)
}

// Close closes the MCP server
func (s *MCPServer) Close() error {
	// mcp-go has no Close for stdio servers
	s.logger.Info("MCP server stopped")
	return nil
}

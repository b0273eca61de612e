package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/request"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

func (s *MCPServer) handleSynthesizeCampaign(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	campaignReq, err := requestFrom(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid request: %v", err)), nil
	}

	s.logger.Info("Synthesizing campaign",
		zap.String("product", campaignReq.Product.Name),
		zap.String("owner_id", campaignReq.OwnerID))

	out, err := s.synth.Synthesize(ctx, campaignReq)
	if out == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Campaign synthesis failed: %v", err)), nil
	}
	b, mErr := json.Marshal(out)
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode outcome: %v", mErr)), nil
	}
	if out.Failed() {
		return mcp.NewToolResultError(string(b)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// flatFields are the individual synthesize_campaign arguments.
var flatFields = []string{
	"product_name", "product_description", "product_category",
	"s3_bucket", "s3_key", "target_markets", "objectives",
	"budget_range", "timeline", "owner_id",
}

// requestFrom prefers request_json and otherwise normalizes the flat arguments.
func requestFrom(req mcp.CallToolRequest) (types.CampaignRequest, error) {
	if raw := req.GetString("request_json", ""); raw != "" {
		return request.NormalizeJSON([]byte(raw))
	}
	args := map[string]any{}
	for _, field := range flatFields {
		if v := req.GetString(field, ""); v != "" {
			args[field] = v
		}
	}
	return request.Normalize(args)
}

func (s *MCPServer) handleCampaignSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, _ := json.Marshal(map[string]any{
		"sections": types.ResultKeys,
		"layout":   campaign.Layout(),
	})
	return mcp.NewToolResultText(string(b)), nil
}

func (s *MCPServer) handleValidateCampaign(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("campaign_json")
	if err != nil {
		return mcp.NewToolResultError("campaign_json required"), nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid campaign_json: %v", err)), nil
	}
	if err := campaign.Validate(doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("campaign is valid"), nil
}

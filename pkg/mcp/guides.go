package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// guides are the embedded usage notes served by get_guide.
var guides = map[string]func() string{
	"request":  requestGuide,
	"methods":  methodsGuide,
	"sections": sectionsGuide,
}

func requestGuide() string {
	return `# Campaign requests

synthesize_campaign accepts either request_json or the individual fields.

Canonical request_json:
{
  "product": {"name": "Trail Bottle", "description": "...", "category": "outdoor"},
  "image_ref": {"bucket": "uploads", "key": "bottle.png"},
  "target_markets": ["japan", "germany"],
  "objectives": ["awareness"],
  "budget_range": "10000-50000",
  "timeline": "6 weeks",
  "owner_id": "u1"
}

Legacy names are accepted too: product_info, s3_info, user_id,
campaign_objectives, campaign_duration and a "body" envelope holding any of
the above. Only the product name is required. A missing owner becomes
"anonymous".`
}

func methodsGuide() string {
	return fmt.Sprintf(`# How a campaign is produced

1. The model is given the image, enrichment and cultural tools and asked for
   the whole campaign in one pass. Only rate limits are retried.
2. If that output is incomplete, the capabilities run in order:
   image analysis (required), data enrichment, cultural intelligence.
   The stored product record is then read back and a synthesis call fills
   the campaign. Sections the model did not supply are built from the record.

The outcome method tells which path won:
- %s
- %s
- %s (the warning lists the sections built without AI output)`,
		types.MethodTier1ToolCalling, types.MethodTier2Synthesis, types.MethodTier2AggregatedFall)
}

func sectionsGuide() string {
	layout := campaign.Layout()
	var b strings.Builder
	b.WriteString("# Campaign sections\n\nEvery campaign carries all of:\n")
	for _, k := range types.ResultKeys {
		fmt.Fprintf(&b, "- %s: %s\n", k, layout[k])
	}
	return b.String()
}

func guideNames() []string {
	names := make([]string, 0, len(guides))
	for name := range guides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MCPServer) handleGetGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "request")

	if name == "list" {
		result := "Available guides:\n"
		for _, n := range guideNames() {
			result += fmt.Sprintf("- %s\n", n)
		}
		result += "\nUse get_guide with the guide name to read it."
		return mcp.NewToolResultText(result), nil
	}

	guide, ok := guides[name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Guide '%s' not found. Available guides: %v", name, guideNames())), nil
	}
	return mcp.NewToolResultText(guide()), nil
}

package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// maxPromptLabels bounds how many image labels the synthesis prompt carries.
const maxPromptLabels = 5

func tier1Prompt(req types.CampaignRequest) string {
	var b strings.Builder
	b.WriteString("Generate a comprehensive viral marketing campaign for the product below.\n\n")

	fmt.Fprintf(&b, "Product information:\n%s\n\n", indent(req.Product))
	fmt.Fprintf(&b, "Target markets: %s\n", indent(nonNil(req.TargetMarkets)))
	fmt.Fprintf(&b, "Campaign objectives: %s\n", indent(nonNil(req.Objectives)))
	if req.BudgetRange != "" {
		fmt.Fprintf(&b, "Budget range: %s\n", req.BudgetRange)
	}
	if req.Timeline != "" {
		fmt.Fprintf(&b, "Timeline: %s\n", req.Timeline)
	}
	if !req.ImageRef.IsZero() {
		fmt.Fprintf(&b, "Image location: s3://%s/%s\n", req.ImageRef.Bucket, req.ImageRef.Key)
	}
	if req.ImageURL != "" {
		fmt.Fprintf(&b, "Image URL: %s\n", req.ImageURL)
	}

	fmt.Fprintf(&b, `
Use the tools in this order:
1. %s to analyze the product image. It returns the product_id and user_id of the product record.
2. %s with that product_id and user_id to add market trends and related media.
3. %s with that product_id and user_id for the target markets.

Then synthesize everything into one campaign and reply with a single JSON object and nothing else.
`, toolImage, toolEnrich, toolCultural)
	b.WriteString(schemaBlock())
	return b.String()
}

func synthesisPrompt(subjectID string, record types.SubjectRecord, req types.CampaignRequest) string {
	labels := record.Strings(types.FieldImageLabels)
	if len(labels) > maxPromptLabels {
		labels = labels[:maxPromptLabels]
	}
	media := record[types.FieldRelatedMedia]
	if media == nil {
		media = record[types.FieldLegacyMedia]
	}
	objectives := record.Strings(types.FieldObjectives)
	if len(objectives) == 0 {
		objectives = req.Objectives
	}
	name := record.String(types.FieldProductName)
	if name == "" {
		name = req.Product.Name
	}

	var b strings.Builder
	b.WriteString("You are a viral marketing campaign expert. Synthesize a complete marketing campaign from the market analysis below.\n\n")
	fmt.Fprintf(&b, "Product: %s\nProduct ID: %s\n", name, subjectID)
	if d := record.String(types.FieldProductDescription); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	fmt.Fprintf(&b, "\nDetected product features:\n%s\n", indent(nonNil(labels)))
	fmt.Fprintf(&b, "\nRelated media and trends:\n%s\n", indent(orEmptyList(media)))
	fmt.Fprintf(&b, "\nMarket insights by region:\n%s\n", indent(orEmptyObject(record.Object(types.FieldMarketInsights))))
	fmt.Fprintf(&b, "\nTarget markets: %s\n", indent(nonNil(record.Markets())))
	fmt.Fprintf(&b, "Campaign objectives: %s\n", indent(nonNil(objectives)))
	b.WriteString(`
Cover platform-specific content for Instagram, TikTok, YouTube and LinkedIn, a content calendar,
audience segments, expected KPIs and a budget split across platforms.

Return ONLY a JSON object. No commentary, no code fences.
`)
	b.WriteString(schemaBlock())
	return b.String()
}

func schemaBlock() string {
	layout := campaign.Layout()
	keys := make([]string, 0, len(layout))
	for k := range layout {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\nThe JSON object must have exactly these top-level keys:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, layout[k])
	}
	return b.String()
}

func indent(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}

func orEmptyList(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}

func orEmptyObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

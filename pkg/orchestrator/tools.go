package orchestrator

import (
	"context"
	"strings"

	"github.com/spawn-mcp/campaign-synth/pkg/gateway"
	"github.com/spawn-mcp/campaign-synth/pkg/inference"
)

var (
	toolImage    = gateway.Image.Function()
	toolEnrich   = gateway.Enrichment.Function()
	toolCultural = gateway.Cultural.Function()
)

// tools binds the three capabilities for the model. The request supplies
// every parameter the model leaves out, and ids reported by a capability are
// remembered for the calls that follow.
func (o *Orchestrator) tools(r *run) []inference.Tool {
	idParams := []inference.Param{
		{Name: "product_id", Description: "Product id returned by the image analysis", Required: true},
		{Name: "user_id", Description: "Owner id returned by the image analysis"},
	}

	return []inference.Tool{
		{
			Name:        toolImage,
			Description: "Analyze the product image, create the product record and return its product_id and user_id.",
			Handler: func(ctx context.Context, _ map[string]any) map[string]any {
				return o.callTool(ctx, r, gateway.Image, imagePayload(r.req))
			},
		},
		{
			Name:        toolEnrich,
			Description: "Enrich the product record with market trends and related media.",
			Params:      idParams,
			Handler: func(ctx context.Context, args map[string]any) map[string]any {
				subjectID, ownerID := r.idsFrom(args)
				return o.callTool(ctx, r, gateway.Enrichment, enrichmentPayload(r.req, subjectID, ownerID))
			},
		},
		{
			Name:        toolCultural,
			Description: "Add cultural insights for the target markets to the product record.",
			Params: append(idParams[:len(idParams):len(idParams)], inference.Param{
				Name:        "target_markets",
				Description: "Comma separated markets; defaults to the requested markets",
			}),
			Handler: func(ctx context.Context, args map[string]any) map[string]any {
				subjectID, ownerID := r.idsFrom(args)
				req := r.req
				if m := argString(args, "target_markets"); m != "" {
					req.TargetMarkets = splitList(m)
				}
				return o.callTool(ctx, r, gateway.Cultural, culturalPayload(req, subjectID, ownerID))
			},
		},
	}
}

func (o *Orchestrator) callTool(ctx context.Context, r *run, c gateway.Capability, p gateway.Payload) map[string]any {
	res := o.invoke(ctx, r, c, p)
	if res.Success {
		r.remember(res.SubjectID, res.OwnerID)
	}

	out := map[string]any{"success": res.Success}
	if res.SubjectID != "" {
		out["product_id"] = res.SubjectID
	}
	if res.OwnerID != "" {
		out["user_id"] = res.OwnerID
	}
	if res.Data != nil {
		out["data"] = res.Data
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	return out
}

// idsFrom prefers ids the model passed and falls back to remembered ones.
func (r *run) idsFrom(args map[string]any) (string, string) {
	subjectID, ownerID := r.ids()
	if s := argString(args, "product_id"); s != "" {
		subjectID = s
	}
	if s := argString(args, "user_id"); s != "" {
		ownerID = s
	}
	return subjectID, ownerID
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

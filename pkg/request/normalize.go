// Package request turns loosely-shaped campaign requests into the canonical
// types.CampaignRequest. Every alias is resolved here, once, through fixed
// priority lists; nothing downstream looks at raw field names.
package request

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spawn-mcp/campaign-synth/pkg/errors"
	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// Alias priority lists; earlier names win.
var (
	productAliases     = []string{"product", "product_info", "productInfo"}
	nameAliases        = []string{"name", "product_name", "productName", "title"}
	descriptionAliases = []string{"description", "product_description", "productDescription"}
	categoryAliases    = []string{"category", "product_category", "productCategory"}

	imageAliases  = []string{"image_ref", "imageRef", "s3_info", "s3Info", "image"}
	bucketAliases = []string{"bucket", "s3_bucket", "bucket_name", "bucketName"}
	keyAliases    = []string{"key", "s3_key", "image_key", "object_key", "objectKey"}
	uriAliases    = []string{"s3_uri", "uri"}

	marketAliases     = []string{"target_markets", "targetMarkets", "markets"}
	marketListAliases = []string{"markets", "countries", "regions", "primary", "secondary"}

	objectiveAliases     = []string{"campaign_objectives", "campaignObjectives", "objectives", "goals"}
	objectiveListAliases = []string{"objectives", "goals", "primary_goal", "goal"}

	budgetAliases      = []string{"budget_range", "budgetRange", "budget"}
	timelineAliases    = []string{"timeline", "campaign_duration", "campaignDuration", "duration"}
	ownerAliases       = []string{"owner_id", "ownerId", "user_id", "userId"}
	correlationAliases = []string{"correlation_id", "correlationId"}
)

// NormalizeJSON decodes data and normalizes it.
func NormalizeJSON(data []byte) (types.CampaignRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.CampaignRequest{}, errors.Wrapf(err, errors.ErrInvalidInput, "request is not a JSON object")
	}
	return Normalize(raw)
}

// Normalize resolves aliases in raw and decodes the canonical form.
// A "body" envelope, as a string or an object, is unwrapped first.
func Normalize(raw map[string]any) (types.CampaignRequest, error) {
	var req types.CampaignRequest

	raw, err := unwrapBody(raw)
	if err != nil {
		return req, err
	}

	canonical := map[string]any{
		"product":        product(raw),
		"target_markets": markets(raw),
		"owner_id":       firstString(raw, ownerAliases),
		"correlation_id": firstString(raw, correlationAliases),
	}
	if ref := imageRef(raw); ref != nil {
		canonical["image_ref"] = ref
	}

	objectives, budget, timeline := objectives(raw)
	canonical["objectives"] = objectives
	canonical["budget_range"] = firstNonEmpty(firstString(raw, budgetAliases), budget)
	canonical["timeline"] = firstNonEmpty(firstString(raw, timelineAliases), timeline)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return req, errors.Wrap(err, errors.ErrInternalError)
	}
	if err := decoder.Decode(canonical); err != nil {
		return req, errors.Wrapf(err, errors.ErrInvalidInput, "request fields have unexpected types")
	}

	if req.OwnerID == "" {
		req.OwnerID = types.DefaultOwnerID
	}
	if req.Product.Name == "" {
		return req, errors.New(errors.ErrMissingRequired, "product name is required")
	}
	return req, nil
}

func unwrapBody(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return nil, errors.New(errors.ErrInvalidInput, "request is empty")
	}
	body, ok := raw["body"]
	if !ok {
		return raw, nil
	}
	switch b := body.(type) {
	case map[string]any:
		return b, nil
	case string:
		var inner map[string]any
		if err := json.Unmarshal([]byte(b), &inner); err != nil || inner == nil {
			return nil, errors.New(errors.ErrInvalidInput, "request body is not a JSON object")
		}
		return inner, nil
	default:
		return nil, errors.New(errors.ErrInvalidInput, "request body is not a JSON object")
	}
}

func product(raw map[string]any) map[string]any {
	src := firstObject(raw, productAliases)
	if src == nil {
		src = raw
	}
	out := map[string]any{
		"name":        firstString(src, nameAliases),
		"description": firstString(src, descriptionAliases),
		"category":    firstString(src, categoryAliases),
	}
	if out["name"] == "" {
		// product object without a name: accept a top-level product_name
		out["name"] = firstString(raw, []string{"product_name", "productName"})
	}
	return out
}

func imageRef(raw map[string]any) map[string]any {
	src := firstObject(raw, imageAliases)
	if src == nil {
		src = raw
	}
	bucket := firstString(src, bucketAliases)
	key := firstString(src, keyAliases)
	if bucket == "" && key == "" {
		bucket, key = splitS3URI(firstString(src, uriAliases))
	}
	if bucket == "" && key == "" {
		return nil
	}
	return map[string]any{"bucket": bucket, "key": key}
}

func splitS3URI(uri string) (string, string) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", ""
	}
	bucket, key, _ := strings.Cut(rest, "/")
	return bucket, key
}

func markets(raw map[string]any) []string {
	v, ok := firstValue(raw, marketAliases)
	if !ok {
		return nil
	}
	return uniqueFold(flatten(v, marketListAliases))
}

// uniqueFold drops case-insensitive repeats, keeping the first spelling.
func uniqueFold(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// objectives also returns budget and timeline when they ride inside an
// objectives object, as the original clients send them.
func objectives(raw map[string]any) ([]string, string, string) {
	v, ok := firstValue(raw, objectiveAliases)
	if !ok {
		return nil, "", ""
	}
	list := flatten(v, objectiveListAliases)
	obj := asObject(v)
	if obj == nil {
		return list, "", ""
	}
	return list, firstString(obj, budgetAliases), firstString(obj, timelineAliases)
}

// flatten accepts a list, a comma separated string, a JSON-encoded string,
// or an object whose listKeys hold any of those.
func flatten(v any, listKeys []string) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flatten(item, listKeys)...)
		}
		return out
	case []string:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return flatten(decoded, listKeys)
			}
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case map[string]any:
		var out []string
		for _, k := range listKeys {
			if inner, ok := t[k]; ok {
				out = append(out, flatten(inner, nil)...)
			}
		}
		return out
	default:
		return nil
	}
}

func asObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		var obj map[string]any
		if strings.HasPrefix(strings.TrimSpace(t), "{") && json.Unmarshal([]byte(t), &obj) == nil {
			return obj
		}
	}
	return nil
}

func firstValue(m map[string]any, aliases []string) (any, bool) {
	for _, k := range aliases {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstObject returns the first alias holding an object, decoding JSON strings.
func firstObject(m map[string]any, aliases []string) map[string]any {
	for _, k := range aliases {
		if obj := asObject(m[k]); obj != nil {
			return obj
		}
	}
	return nil
}

func firstString(m map[string]any, aliases []string) string {
	for _, k := range aliases {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

package types

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known fields of an aggregation record. Sub-capabilities write them;
// the orchestrator only reads them, apart from the campaign status stamp.
const (
	FieldSubjectID          = "product_id"
	FieldOwnerID            = "user_id"
	FieldProductName        = "product_name"
	FieldProductDescription = "product_description"
	FieldProductCategory    = "product_category"
	FieldImageBucket        = "s3_bucket"
	FieldImageKey           = "s3_key"
	FieldImageURL           = "image_url"
	FieldImageLabels        = "image_labels"
	FieldRelatedMedia       = "related_media"
	FieldLegacyMedia        = "youtube_videos"
	FieldTargetMarkets      = "target_markets"
	FieldMarketInsights     = "market_insights"
	FieldObjectives         = "campaign_objectives"
	FieldTimeline           = "campaign_duration"
	FieldStatus             = "status"
	FieldUpdatedAt          = "updated_at"
	FieldCampaignMethod     = "campaign_method"
	FieldCampaignGenerated  = "campaign_generated_at"
)

// SubjectRecord is the accumulated per-subject fact record held in the
// aggregation store, keyed by (subject id, owner id).
type SubjectRecord map[string]any

// String returns the field as a trimmed string, or "" when absent.
func (r SubjectRecord) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

// Strings returns the field as a string list. Lists of objects contribute their
// "name" entry; a single string becomes a one-element list.
func (r SubjectRecord) Strings(field string) []string {
	return toStrings(r[field])
}

// Objects returns the field as a list of objects, skipping non-object entries.
func (r SubjectRecord) Objects(field string) []map[string]any {
	list, ok := r[field].([]any)
	if !ok {
		if typed, ok := r[field].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Object returns the field as an object, or nil.
func (r SubjectRecord) Object(field string) map[string]any {
	m, _ := r[field].(map[string]any)
	return m
}

// Markets returns the union of target markets and markets that already carry
// cultural insights, in a stable order.
func (r SubjectRecord) Markets() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range r.Strings(FieldTargetMarkets) {
		key := strings.ToLower(m)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	var extra []string
	for m := range r.Object(FieldMarketInsights) {
		if !seen[strings.ToLower(m)] {
			seen[strings.ToLower(m)] = true
			extra = append(extra, m)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{strings.TrimSpace(t)}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if name, ok := it["name"].(string); ok && name != "" {
					out = append(out, name)
				}
			}
		}
		return out
	default:
		return nil
	}
}

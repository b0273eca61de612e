package campaign

import (
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// Reconciliation is a complete campaign plus the keys that had to come from
// the deterministic builder.
type Reconciliation struct {
	Result       types.CampaignResult
	FallbackKeys []string
}

// AIComplete is true when every section came from the candidate.
func (r Reconciliation) AIComplete() bool {
	return len(r.FallbackKeys) == 0
}

// Reconcile returns a valid candidate unchanged. Otherwise it keeps each valid
// section of candidate, fills the rest from Build(facts) and drops keys
// outside the schema. A nil candidate yields exactly Build(facts).
func Reconcile(candidate map[string]any, facts types.SubjectRecord) Reconciliation {
	if Valid(candidate) {
		return Reconciliation{Result: types.CampaignResult(candidate)}
	}

	result := make(types.CampaignResult, len(types.ResultKeys))
	var fallback []string
	var built types.CampaignResult

	for _, k := range types.ResultKeys {
		if v, ok := candidate[k]; ok && SectionValid(k, v) {
			result[k] = v
			continue
		}
		if built == nil {
			built = Build(facts)
		}
		result[k] = built[k]
		fallback = append(fallback, k)
	}

	return Reconciliation{Result: result, FallbackKeys: fallback}
}

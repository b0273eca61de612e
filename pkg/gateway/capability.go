package gateway

// Capability names one of the three independently deployed analysis services.
type Capability int

const (
	// Image analyses the product image and creates the subject record.
	Image Capability = iota
	// Enrichment adds related media and market data to the record.
	Enrichment
	// Cultural adds per-market cultural insights to the record.
	Cultural
)

// Capabilities in Tier 2 call order.
var Capabilities = []Capability{Image, Enrichment, Cultural}

var capabilityMeta = map[Capability]struct {
	group    string
	function string
	env      string
}{
	Image:      {"image-analysis", "analyze_product_image", "LAMBDA_IMAGE_ANALYSIS"},
	Enrichment: {"data-enrichment", "enrich_campaign_data", "LAMBDA_DATA_ENRICHMENT"},
	Cultural:   {"cultural-intelligence", "analyze_cultural_insights", "LAMBDA_CULTURAL_INTELLIGENCE"},
}

// String returns the action group name, also used as config key and metric label.
func (c Capability) String() string {
	if m, ok := capabilityMeta[c]; ok {
		return m.group
	}
	return "unknown"
}

// Function is the function name inside the action group; it doubles as the
// tool name offered to the model.
func (c Capability) Function() string {
	return capabilityMeta[c].function
}

// EnvVar names the environment variable that overrides the capability's deployment name.
func (c Capability) EnvVar() string {
	return capabilityMeta[c].env
}

// Fatal reports whether a failure of this capability aborts Tier 2.
func (c Capability) Fatal() bool {
	return c == Image
}

// ParseCapability maps an action group or function name back to a Capability.
func ParseCapability(name string) (Capability, bool) {
	for c, m := range capabilityMeta {
		if name == m.group || name == m.function {
			return c, true
		}
	}
	return 0, false
}

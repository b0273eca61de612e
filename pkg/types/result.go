package types

// Top-level keys of a CampaignResult.
const (
	KeyProduct                 = "product"
	KeyContentIdeas            = "content_ideas"
	KeyCampaigns               = "campaigns"
	KeyGeneratedAssets         = "generated_assets"
	KeyRelatedMedia            = "related_media"
	KeyPlatformRecommendations = "platform_recommendations"
	KeyMarketInsights          = "market_insights"
)

// Asset collections nested under generated_assets.
const (
	AssetImagePrompts   = "image_prompts"
	AssetVideoScripts   = "video_scripts"
	AssetEmailTemplates = "email_templates"
	AssetBlogOutlines   = "blog_outlines"
)

// ResultKeys lists every required top-level key in output order.
var ResultKeys = []string{
	KeyProduct,
	KeyContentIdeas,
	KeyCampaigns,
	KeyGeneratedAssets,
	KeyRelatedMedia,
	KeyPlatformRecommendations,
	KeyMarketInsights,
}

// AssetCollections lists the collections generated_assets must carry.
var AssetCollections = []string{
	AssetImagePrompts,
	AssetVideoScripts,
	AssetEmailTemplates,
	AssetBlogOutlines,
}

// ContainerKind is the JSON container type expected for a key.
type ContainerKind int

const (
	ObjectKind ContainerKind = iota
	ListKind
)

// KeyKinds maps each required key to its container type.
var KeyKinds = map[string]ContainerKind{
	KeyProduct:                 ObjectKind,
	KeyContentIdeas:            ListKind,
	KeyCampaigns:               ListKind,
	KeyGeneratedAssets:         ObjectKind,
	KeyRelatedMedia:            ListKind,
	KeyPlatformRecommendations: ObjectKind,
	KeyMarketInsights:          ObjectKind,
}

// CampaignResult is the structured campaign document. Values are generic JSON
// (map[string]any, []any, string, float64, bool) because sections may come
// straight from model output.
type CampaignResult map[string]any

// Clone returns a shallow copy of the result.
func (r CampaignResult) Clone() CampaignResult {
	out := make(CampaignResult, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

package campaign

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

func sampleRecord() types.SubjectRecord {
	return types.SubjectRecord{
		types.FieldSubjectID:          "p-1",
		types.FieldOwnerID:            "u-1",
		types.FieldProductName:        "Aurora Headphones",
		types.FieldProductDescription: "Wireless noise-cancelling headphones",
		types.FieldProductCategory:    "Electronics",
		types.FieldImageBucket:        "product-images",
		types.FieldImageKey:           "u-1/aurora.jpg",
		types.FieldImageLabels: []any{
			map[string]any{"name": "Headphones", "confidence": 99.2},
			map[string]any{"name": "Audio", "confidence": 91.0},
		},
		types.FieldTargetMarkets: []any{"japan"},
		types.FieldMarketInsights: map[string]any{
			"japan": map[string]any{
				"market":              "Japan",
				"preferred_platforms": []any{"LINE", "Instagram", "YouTube"},
				"considerations":      []any{"Politeness and precision in tone"},
			},
		},
	}
}

func TestBuildIsValidForAnyRecord(t *testing.T) {
	records := map[string]types.SubjectRecord{
		"nil":    nil,
		"empty":  {},
		"sample": sampleRecord(),
		"odd types": {
			types.FieldProductName:    42,
			types.FieldImageLabels:    "single",
			types.FieldMarketInsights: []any{"not", "an", "object"},
			types.FieldRelatedMedia:   "nope",
		},
	}

	for name, r := range records {
		t.Run(name, func(t *testing.T) {
			out := Build(r)
			require.NoError(t, Validate(out))
			assert.Len(t, out, len(types.ResultKeys))
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	assert.Equal(t, Build(sampleRecord()), Build(sampleRecord()))
}

func TestBuildUsesFacts(t *testing.T) {
	out := Build(sampleRecord())

	product := out[types.KeyProduct].(map[string]any)
	assert.Equal(t, "Aurora Headphones", product["name"])
	image := product["image"].(map[string]any)
	assert.Equal(t, []any{"Headphones", "Audio"}, image["labels"])
	assert.Equal(t, "https://product-images.s3.amazonaws.com/u-1/aurora.jpg", image["public_url"])

	platforms := out[types.KeyPlatformRecommendations].(map[string]any)
	assert.Equal(t, []any{"LINE", "Instagram", "YouTube"}, platforms["primary_platforms"])

	insights := out[types.KeyMarketInsights].(map[string]any)
	assert.Contains(t, insights["cultural_considerations"], "Politeness and precision in tone")
	byMarket := insights["by_market"].(map[string]any)
	assert.Contains(t, byMarket, "japan")

	for _, idea := range out[types.KeyContentIdeas].([]any) {
		score := idea.(map[string]any)["engagement_score"].(float64)
		assert.GreaterOrEqual(t, score, float64(70))
		assert.LessOrEqual(t, score, float64(90))
	}
}

func TestBuildDefaultsWithoutFacts(t *testing.T) {
	out := Build(nil)

	image := out[types.KeyProduct].(map[string]any)["image"].(map[string]any)
	assert.Equal(t, []any{"General", "Quality", "Innovation"}, image["labels"])
	assert.NotContains(t, image, "public_url")

	media := out[types.KeyRelatedMedia].([]any)
	require.Len(t, media, 2)
	assert.True(t, strings.HasPrefix(media[0].(map[string]any)["url"].(string), "https://www.youtube.com/results?search_query="))
}

func TestBuildKeepsFetchedMedia(t *testing.T) {
	r := sampleRecord()
	r[types.FieldLegacyMedia] = []any{
		map[string]any{"title": "Aurora teardown", "url": "https://example.com/v/1", "views": float64(1200)},
	}

	media := Build(r)[types.KeyRelatedMedia].([]any)
	require.Len(t, media, 1)
	item := media[0].(map[string]any)
	assert.Equal(t, "Aurora teardown", item["title"])
	assert.Equal(t, "Product Review Channel", item["channel"])
	assert.Equal(t, float64(1200), item["views"])
}

func TestSectionValid(t *testing.T) {
	assets := map[string]any{
		types.AssetImagePrompts:   []any{},
		types.AssetVideoScripts:   []any{},
		types.AssetEmailTemplates: []any{},
		types.AssetBlogOutlines:   []any{},
	}
	assert.True(t, SectionValid(types.KeyGeneratedAssets, assets))

	delete(assets, types.AssetBlogOutlines)
	assert.False(t, SectionValid(types.KeyGeneratedAssets, assets))

	assert.True(t, SectionValid(types.KeyCampaigns, []any{}))
	assert.False(t, SectionValid(types.KeyCampaigns, map[string]any{}))
	assert.False(t, SectionValid(types.KeyProduct, "Aurora"))
	assert.False(t, SectionValid("unknown", map[string]any{}))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))

	partial := Build(nil)
	delete(partial, types.KeyMarketInsights)
	partial[types.KeyContentIdeas] = "bad"

	err := Validate(partial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content_ideas, market_insights")
	assert.Equal(t, []string{types.KeyContentIdeas, types.KeyMarketInsights}, InvalidKeys(partial))
}

func TestReconcile(t *testing.T) {
	facts := sampleRecord()
	built := Build(facts)

	t.Run("nil candidate equals builder", func(t *testing.T) {
		rec := Reconcile(nil, facts)
		assert.Equal(t, built, rec.Result)
		assert.Equal(t, types.ResultKeys, rec.FallbackKeys)
		assert.False(t, rec.AIComplete())
	})

	t.Run("complete candidate passes through unchanged", func(t *testing.T) {
		candidate := map[string]any(Build(types.SubjectRecord{types.FieldProductName: "Other"}))
		candidate["summary"] = "launch in spring"

		rec := Reconcile(candidate, facts)
		assert.True(t, rec.AIComplete())
		assert.Equal(t, types.CampaignResult(candidate), rec.Result)
		assert.Equal(t, "launch in spring", rec.Result["summary"])
	})

	t.Run("partial candidate drops unknown keys", func(t *testing.T) {
		candidate := map[string]any{
			types.KeyProduct: map[string]any{"name": "From model"},
			"summary":        "launch in spring",
		}

		rec := Reconcile(candidate, facts)
		require.True(t, Valid(rec.Result))
		assert.NotContains(t, rec.Result, "summary")
	})

	t.Run("missing and malformed keys are filled", func(t *testing.T) {
		candidate := map[string]any{
			types.KeyProduct:      map[string]any{"name": "From model"},
			types.KeyContentIdeas: []any{map[string]any{"platform": "Threads"}},
			types.KeyCampaigns:    "not a list",
		}

		rec := Reconcile(candidate, facts)
		require.True(t, Valid(rec.Result))
		assert.Equal(t, candidate[types.KeyProduct], rec.Result[types.KeyProduct])
		assert.Equal(t, candidate[types.KeyContentIdeas], rec.Result[types.KeyContentIdeas])
		assert.Equal(t, built[types.KeyCampaigns], rec.Result[types.KeyCampaigns])
		assert.Equal(t, []string{
			types.KeyCampaigns,
			types.KeyGeneratedAssets,
			types.KeyRelatedMedia,
			types.KeyPlatformRecommendations,
			types.KeyMarketInsights,
		}, rec.FallbackKeys)
	})
}

func TestLayout(t *testing.T) {
	layout := Layout()
	assert.Len(t, layout, len(types.ResultKeys))
	assert.Equal(t, "list", layout[types.KeyRelatedMedia])
	assert.Contains(t, layout[types.KeyGeneratedAssets], types.AssetBlogOutlines)
}

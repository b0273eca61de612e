package campaign

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/url"
	"strings"
	"unicode"

	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

const (
	maxLabels       = 10
	maxRelatedMedia = 5
	maxDescription  = 200
)

var defaultPlatforms = []string{"Instagram", "TikTok", "YouTube"}

type productSection struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Image       imageSection `json:"image"`
}

type imageSection struct {
	PublicURL string   `json:"public_url,omitempty"`
	S3Key     string   `json:"s3_key"`
	Labels    []string `json:"labels"`
}

type contentIdea struct {
	Platform        string   `json:"platform"`
	Topic           string   `json:"topic"`
	EngagementScore int      `json:"engagement_score"`
	EstimatedReach  int      `json:"estimated_reach"`
	Caption         string   `json:"caption"`
	Hashtags        []string `json:"hashtags"`
}

type campaignPlan struct {
	Name          string            `json:"name"`
	Duration      string            `json:"duration"`
	PostsPerWeek  int               `json:"posts_per_week"`
	Platforms     []string          `json:"platforms"`
	Objectives    []string          `json:"objectives,omitempty"`
	TargetMarkets []string          `json:"target_markets,omitempty"`
	Calendar      map[string]string `json:"calendar"`
	Adaptations   map[string]string `json:"adaptations"`
}

type videoScript struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type emailTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type blogOutline struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

type assetsSection struct {
	ImagePrompts   []string        `json:"image_prompts"`
	VideoScripts   []videoScript   `json:"video_scripts"`
	EmailTemplates []emailTemplate `json:"email_templates"`
	BlogOutlines   []blogOutline   `json:"blog_outlines"`
}

type mediaItem struct {
	Title   string `json:"title"`
	Channel string `json:"channel"`
	URL     string `json:"url"`
	Views   int    `json:"views"`
}

type platformSection struct {
	PrimaryPlatforms   []string `json:"primary_platforms"`
	SecondaryPlatforms []string `json:"secondary_platforms"`
	Rationale          string   `json:"rationale"`
}

type marketSection struct {
	TrendingContentTypes   []string       `json:"trending_content_types"`
	CulturalConsiderations []string       `json:"cultural_considerations"`
	AudiencePreferences    []string       `json:"audience_preferences"`
	TargetMarkets          []string       `json:"target_markets"`
	ByMarket               map[string]any `json:"by_market"`
}

// facts is the builder's view of a subject record with defaults applied.
type facts struct {
	name        string
	description string
	category    string
	labels      []string
	imageKey    string
	imageURL    string
	duration    string
	objectives  []string
	markets     []string
	insights    map[string]any
	media       []map[string]any
	rng         *rand.Rand
}

func readFacts(r types.SubjectRecord) facts {
	f := facts{
		name:       firstNonEmpty(r.String(types.FieldProductName), "Product"),
		category:   firstNonEmpty(r.String(types.FieldProductCategory), "General"),
		imageKey:   firstNonEmpty(r.String(types.FieldImageKey), r.String("image_key"), "unknown"),
		duration:   firstNonEmpty(r.String(types.FieldTimeline), "30 days"),
		objectives: r.Strings(types.FieldObjectives),
		markets:    r.Markets(),
		insights:   r.Object(types.FieldMarketInsights),
		rng:        rand.New(rand.NewSource(seedFor(r))),
	}
	f.description = firstNonEmpty(r.String(types.FieldProductDescription), f.name+" - innovative product")

	f.labels = r.Strings(types.FieldImageLabels)
	if len(f.labels) == 0 {
		f.labels = r.Strings("labels")
	}
	if len(f.labels) > maxLabels {
		f.labels = f.labels[:maxLabels]
	}
	if len(f.labels) == 0 {
		f.labels = []string{f.category, "Quality", "Innovation"}
	}

	f.imageURL = r.String(types.FieldImageURL)
	if bucket := r.String(types.FieldImageBucket); f.imageURL == "" && bucket != "" && f.imageKey != "unknown" {
		f.imageURL = fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, f.imageKey)
	}

	f.media = r.Objects(types.FieldRelatedMedia)
	if len(f.media) == 0 {
		f.media = r.Objects(types.FieldLegacyMedia)
	}
	return f
}

// seedFor derives the sampling seed from the record identity, so the same
// record always yields the same estimates.
func seedFor(r types.SubjectRecord) int64 {
	h := fnv.New64a()
	for _, field := range []string{types.FieldSubjectID, types.FieldOwnerID, types.FieldProductName, types.FieldProductCategory} {
		h.Write([]byte(r.String(field)))
		h.Write([]byte{0})
	}
	return int64(h.Sum64())
}

// Build produces a complete, valid campaign from whatever facts the record
// holds. It never fails and never calls out; equal records give equal results.
func Build(record types.SubjectRecord) types.CampaignResult {
	f := readFacts(record)
	out := make(types.CampaignResult, len(types.ResultKeys))
	for _, k := range types.ResultKeys {
		out[k] = f.section(k)
	}
	return out
}

// BuildSection produces a single top-level section.
func BuildSection(record types.SubjectRecord, key string) any {
	return Build(record)[key]
}

// section builds key from f. Sections draw from the shared rng in schema
// order, which Build preserves.
func (f facts) section(key string) any {
	var v any
	switch key {
	case types.KeyProduct:
		v = f.product()
	case types.KeyContentIdeas:
		v = f.contentIdeas()
	case types.KeyCampaigns:
		v = f.campaigns()
	case types.KeyGeneratedAssets:
		v = f.assets()
	case types.KeyRelatedMedia:
		v = f.relatedMedia()
	case types.KeyPlatformRecommendations:
		v = f.platforms()
	case types.KeyMarketInsights:
		v = f.marketInsights()
	default:
		return nil
	}
	return generic(v)
}

func (f facts) product() productSection {
	return productSection{
		Name:        f.name,
		Description: truncate(f.description, maxDescription),
		Category:    f.category,
		Image: imageSection{
			PublicURL: f.imageURL,
			S3Key:     f.imageKey,
			Labels:    f.labels,
		},
	}
}

func (f facts) contentIdeas() []contentIdea {
	tag := hashtag(f.category)
	labelTag := hashtag(f.labels[0])

	return []contentIdea{
		{
			Platform:        "Instagram",
			Topic:           fmt.Sprintf("Showcase %s lifestyle integration", f.name),
			EngagementScore: f.between(70, 80),
			EstimatedReach:  f.between(5000, 25000),
			Caption:         fmt.Sprintf("Discover the innovation behind %s. Experience quality that transforms your daily routine.", f.name),
			Hashtags:        dedupe([]string{"#Innovation", "#Quality", tag, labelTag, "#Lifestyle"}),
		},
		{
			Platform:        "TikTok",
			Topic:           fmt.Sprintf("%s unboxing and first impressions", f.name),
			EngagementScore: f.between(80, 90),
			EstimatedReach:  f.between(10000, 50000),
			Caption:         fmt.Sprintf("Unboxing %s. You won't believe what's inside!", f.name),
			Hashtags:        dedupe([]string{"#Unboxing", tag, "#Review", "#MustHave"}),
		},
		{
			Platform:        "YouTube",
			Topic:           fmt.Sprintf("Complete %s review and demonstration", f.name),
			EngagementScore: f.between(75, 85),
			EstimatedReach:  f.between(3000, 20000),
			Caption:         fmt.Sprintf("In-depth review of %s. Is it worth it? Watch to find out!", f.name),
			Hashtags:        dedupe([]string{"#ProductReview", tag, "#HonestReview"}),
		},
	}
}

func (f facts) campaigns() []campaignPlan {
	return []campaignPlan{
		{
			Name:          fmt.Sprintf("%s Viral Marketing Campaign", f.name),
			Duration:      f.duration,
			PostsPerWeek:  3,
			Platforms:     defaultPlatforms,
			Objectives:    f.objectives,
			TargetMarkets: f.markets,
			Calendar: map[string]string{
				"Week 1": fmt.Sprintf("Introduce the campaign with stunning visuals and tips for %s usage", f.name),
				"Week 2": "Share user-generated content and customer testimonials",
				"Week 3": "Focus on product features and benefits with detailed content",
				"Week 4": "Wrap up with contests and calls-to-action for engagement",
			},
			Adaptations: map[string]string{
				"Instagram": "Use high-quality images and short videos showcasing product features",
				"TikTok":    "Create short, engaging videos with trending music and quick tips",
				"YouTube":   "Post comprehensive reviews and tutorials for in-depth content",
			},
		},
		{
			Name:          fmt.Sprintf("%s Community Building Initiative", f.name),
			Duration:      "45 days",
			PostsPerWeek:  2,
			Platforms:     []string{"Instagram", "Facebook", "LinkedIn"},
			Objectives:    f.objectives,
			TargetMarkets: f.markets,
			Calendar: map[string]string{
				"Week 1": "Launch community challenges and engagement activities",
				"Week 2": "Share customer stories and success cases",
				"Week 3": "Host Q&A sessions and expert interviews",
				"Week 4": "Run contests and giveaways to boost participation",
				"Week 5": "Analyze results and plan follow-up activities",
				"Week 6": "Celebrate community achievements and announce winners",
			},
			Adaptations: map[string]string{
				"Instagram": "Focus on Stories, Reels, and community polls",
				"Facebook":  "Create groups and events for community interaction",
				"LinkedIn":  "Share professional insights and industry connections",
			},
		},
	}
}

func (f facts) assets() assetsSection {
	n := f.name
	return assetsSection{
		ImagePrompts: []string{
			fmt.Sprintf("A sleek %s displayed in a modern, well-lit setting showcasing its key features and premium quality", n),
			fmt.Sprintf("Action shot of %s in use, highlighting performance and user experience", n),
			fmt.Sprintf("Lifestyle image showing %s integrated into daily life with happy, satisfied users", n),
		},
		VideoScripts: []videoScript{
			{Type: "Short form video", Content: fmt.Sprintf("Quick tour of %s features! From unboxing to first use, see why this is a game-changer.", n)},
			{Type: "Long form video", Content: fmt.Sprintf("In-depth review of %s: every feature, performance tests and real user experiences.", n)},
		},
		EmailTemplates: []emailTemplate{
			{
				Subject: fmt.Sprintf("Discover the Power of %s", n),
				Body:    fmt.Sprintf("Hello [Name],\n\nWe're excited to introduce you to %s. Experience [key benefit] and transform your [use case].\n\nLearn more: [link]\n\nBest regards,\nThe %s Team", n, n),
			},
			{
				Subject: fmt.Sprintf("Your %s Success Story", n),
				Body:    fmt.Sprintf("Hi [Name],\n\nThank you for choosing %s! Here are some tips to get the most out of your purchase.\n\n[Personalized tips]\n\nShare your experience: [link]\n\nThe %s Team", n, n),
			},
		},
		BlogOutlines: []blogOutline{
			{
				Title: fmt.Sprintf("Why %s is Revolutionizing %s", n, f.category),
				Points: []string{
					fmt.Sprintf("Introduction to %s and its unique value proposition", n),
					"Key features that set it apart from competitors",
					"Real-world applications and use cases",
					"Customer testimonials and success stories",
				},
			},
			{
				Title: fmt.Sprintf("Getting Started with %s: A Complete Guide", n),
				Points: []string{
					"Unboxing and initial setup process",
					"Essential features and how to use them",
					"Tips and tricks for optimal performance",
					"Common questions and troubleshooting",
				},
			},
		},
	}
}

func (f facts) relatedMedia() []mediaItem {
	var items []mediaItem
	for _, m := range f.media {
		if len(items) == maxRelatedMedia {
			break
		}
		item := mediaItem{
			Title:   stringOr(m["title"], f.name+" Related Video"),
			Channel: stringOr(m["channel"], "Product Review Channel"),
			URL:     stringOr(m["url"], searchURL(f.name+" review")),
			Views:   intOr(m["views"], 0),
		}
		items = append(items, item)
	}
	if len(items) > 0 {
		return items
	}

	return []mediaItem{
		{
			Title:   fmt.Sprintf("%s Review & Features", f.name),
			Channel: "ProductReviews",
			URL:     searchURL(f.name + " review"),
			Views:   f.between(5000, 20000),
		},
		{
			Title:   fmt.Sprintf("Unboxing the New %s", f.name),
			Channel: "TechUnboxing",
			URL:     searchURL(f.name + " unboxing"),
			Views:   f.between(2000, 10000),
		},
	}
}

func (f facts) platforms() platformSection {
	primary := defaultPlatforms
	if preferred := f.preferredPlatforms(); len(preferred) > 0 {
		primary = preferred
	}
	return platformSection{
		PrimaryPlatforms:   primary,
		SecondaryPlatforms: []string{"Facebook", "LinkedIn"},
		Rationale: fmt.Sprintf("Selected platforms based on target audience demographics and %s category performance. "+
			"Visual platforms carry storytelling, short video drives reach, long video carries demonstrations.", f.category),
	}
}

// preferredPlatforms collects the platforms named by per-market insights, most
// frequent first, capped at three.
func (f facts) preferredPlatforms() []string {
	counts := map[string]int{}
	var order []string
	for _, m := range f.markets {
		insight, _ := f.insightFor(m).(map[string]any)
		for _, p := range types.SubjectRecord(insight).Strings("preferred_platforms") {
			if counts[p] == 0 {
				order = append(order, p)
			}
			counts[p]++
		}
	}
	// stable selection by count, ties keep first-seen order
	var out []string
	for len(out) < 3 && len(order) > 0 {
		best := 0
		for i, p := range order {
			if counts[p] > counts[order[best]] {
				best = i
			}
		}
		out = append(out, order[best])
		order = append(order[:best], order[best+1:]...)
	}
	return out
}

func (f facts) marketInsights() marketSection {
	considerations := []string{
		"Emphasize quality and innovation for global markets",
		"Adapt messaging for regional preferences",
		"Use inclusive and authentic representation",
	}

	byMarket := make(map[string]any, len(f.markets))
	for _, m := range f.markets {
		insight := f.insightFor(m)
		if insight == nil {
			insight = map[string]any{
				"market":         m,
				"considerations": []any{fmt.Sprintf("Localize %s messaging for %s audiences", f.name, m)},
			}
		}
		byMarket[m] = insight
		if obj, ok := insight.(map[string]any); ok {
			considerations = append(considerations, types.SubjectRecord(obj).Strings("considerations")...)
		}
	}

	markets := f.markets
	if markets == nil {
		markets = []string{}
	}

	return marketSection{
		TrendingContentTypes: []string{
			"Unboxing videos",
			"User testimonials",
			"Behind-the-scenes content",
			"Tutorial and how-to content",
		},
		CulturalConsiderations: dedupe(considerations),
		AudiencePreferences: []string{
			"Authentic, non-promotional content",
			"Influencer partnerships and UGC",
			"Short-form video content",
			"Interactive and educational content",
		},
		TargetMarkets: markets,
		ByMarket:      byMarket,
	}
}

// insightFor finds the stored insight for a market under its raw or
// normalized ("north_america") key.
func (f facts) insightFor(market string) any {
	if f.insights == nil {
		return nil
	}
	if v, ok := f.insights[market]; ok {
		return v
	}
	return f.insights[strings.ReplaceAll(strings.ToLower(market), " ", "_")]
}

func (f facts) between(lo, hi int) int {
	return lo + f.rng.Intn(hi-lo+1)
}

func generic(v any) any {
	out, err := json.Normalize(v)
	if err != nil {
		// sections are plain structs of strings, ints and maps
		panic(fmt.Sprintf("campaign: normalize section: %v", err))
	}
	return out
}

func hashtag(s string) string {
	var b strings.Builder
	b.WriteByte('#')
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return "#Product"
	}
	return b.String()
}

func searchURL(q string) string {
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(q)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

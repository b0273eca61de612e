package types

// Product describes the item a campaign is generated for.
type Product struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Category    string `json:"category,omitempty" mapstructure:"category"`
}

// ImageRef locates the product image in object storage.
type ImageRef struct {
	Bucket string `json:"bucket" mapstructure:"bucket"`
	Key    string `json:"key" mapstructure:"key"`
}

// IsZero reports whether the reference points at nothing.
func (r *ImageRef) IsZero() bool {
	return r == nil || (r.Bucket == "" && r.Key == "")
}

// CampaignRequest is the canonical, alias-free request accepted by the orchestrator.
type CampaignRequest struct {
	Product       Product   `json:"product" mapstructure:"product"`
	ImageRef      *ImageRef `json:"image_ref,omitempty" mapstructure:"image_ref"`
	TargetMarkets []string  `json:"target_markets,omitempty" mapstructure:"target_markets"`
	Objectives    []string  `json:"objectives,omitempty" mapstructure:"objectives"`
	BudgetRange   string    `json:"budget_range,omitempty" mapstructure:"budget_range"`
	Timeline      string    `json:"timeline,omitempty" mapstructure:"timeline"`
	OwnerID       string    `json:"owner_id" mapstructure:"owner_id"`

	// ImageURL is filled by the image locator when the object store can presign the reference.
	ImageURL string `json:"image_url,omitempty" mapstructure:"image_url"`
	// CorrelationID ties log lines, metrics and published events of one run together.
	CorrelationID string `json:"correlation_id,omitempty" mapstructure:"correlation_id"`
}

// DefaultOwnerID is used when a request carries no owner.
const DefaultOwnerID = "anonymous"

// pkg/tiers/schema.go
package tiers

// Catalog is the plan lineup, loadable from JSON so pricing changes do not
// need a rebuild.
type Catalog struct {
	Version string `json:"version"`
	Tiers   []Tier `json:"tiers"`
}

type Tier struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	// Days is the license term granted per purchase of this tier.
	Days int `json:"days"`
	// StripePriceIDs map checkout line items back to a tier.
	StripePriceIDs []string `json:"stripePriceIds,omitempty"`
}

// pkg/tiers/tiers.go
package tiers

import (
	"encoding/json"
	"fmt"
	"os"

	"builder-licensing/internal/models"
)

// Default returns the built-in lineup used when no catalog file is
// configured. IDs must stay in sync with the tier constants in models.
func Default() *Catalog {
	return &Catalog{
		Version: "builtin",
		Tiers: []Tier{
			{ID: models.TierStarter, DisplayName: "Starter", Days: 365},
			{ID: models.TierPro, DisplayName: "Pro", Days: 365},
			{ID: models.TierMaster, DisplayName: "Master", Days: 365},
		},
	}
}

// Load reads a catalog from path, falling back to the built-in lineup when
// path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse tier catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects catalogs that would issue unusable licenses.
func (c *Catalog) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("tier catalog is empty")
	}
	seen := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.ID == "" {
			return fmt.Errorf("tier with empty id")
		}
		if !models.ValidTier(t.ID) {
			return fmt.Errorf("unknown tier id %q", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tier id %q", t.ID)
		}
		seen[t.ID] = true
		if t.Days < 1 {
			return fmt.Errorf("tier %q has non-positive days", t.ID)
		}
	}
	return nil
}

// ByID returns the tier with the given id, or nil.
func (c *Catalog) ByID(id string) *Tier {
	for i := range c.Tiers {
		if c.Tiers[i].ID == id {
			return &c.Tiers[i]
		}
	}
	return nil
}

// ByPriceID maps a Stripe price to its tier, or nil when no tier claims it.
func (c *Catalog) ByPriceID(priceID string) *Tier {
	for i := range c.Tiers {
		for _, p := range c.Tiers[i].StripePriceIDs {
			if p == priceID {
				return &c.Tiers[i]
			}
		}
	}
	return nil
}

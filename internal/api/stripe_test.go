// internal/api/stripe_test.go
package api

import (
	"testing"

	"builder-licensing/internal/models"
	"builder-licensing/pkg/tiers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func pricedCatalog() *tiers.Catalog {
	return &tiers.Catalog{
		Version: "test",
		Tiers: []tiers.Tier{
			{ID: models.TierStarter, DisplayName: "Starter", Days: 365, StripePriceIDs: []string{"price_starter_yearly"}},
			{ID: models.TierPro, DisplayName: "Pro", Days: 365, StripePriceIDs: []string{"price_pro_yearly", "price_pro_monthly"}},
			{ID: models.TierMaster, DisplayName: "Master", Days: 365, StripePriceIDs: []string{"price_master_yearly"}},
		},
	}
}

func sessionWithPrices(priceIDs ...string) *stripe.CheckoutSession {
	items := make([]*stripe.LineItem, 0, len(priceIDs))
	for _, id := range priceIDs {
		items = append(items, &stripe.LineItem{Price: &stripe.Price{ID: id}})
	}
	return &stripe.CheckoutSession{
		ID:        "cs_test_prices",
		LineItems: &stripe.LineItemList{Data: items},
	}
}

// ============================================================================
// Core Functionality Tests
// ============================================================================

func TestStripe_ResolveTier(t *testing.T) {
	ts := newTestServer(t)
	ts.server.tiers = pricedCatalog()

	tests := []struct {
		name     string
		session  *stripe.CheckoutSession
		expected string
	}{
		{
			name: "metadata tier wins over line items",
			session: &stripe.CheckoutSession{
				ID:        "cs_test_meta",
				Metadata:  map[string]string{"tier": models.TierMaster},
				LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{{Price: &stripe.Price{ID: "price_starter_yearly"}}}},
			},
			expected: models.TierMaster,
		},
		{
			name:     "line item price maps to its tier when metadata is absent",
			session:  sessionWithPrices("price_master_yearly"),
			expected: models.TierMaster,
		},
		{
			name:     "first recognizable price wins",
			session:  sessionWithPrices("price_unknown", "price_starter_yearly"),
			expected: models.TierStarter,
		},
		{
			name:     "unrecognizable purchase falls back to pro",
			session:  sessionWithPrices("price_unknown"),
			expected: models.TierPro,
		},
		{
			name:     "no metadata and no line items falls back to pro",
			session:  &stripe.CheckoutSession{ID: "cs_test_bare"},
			expected: models.TierPro,
		},
		{
			name: "line item without a price is skipped",
			session: &stripe.CheckoutSession{
				ID:        "cs_test_nilprice",
				LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{{Price: nil}, {Price: &stripe.Price{ID: "price_pro_monthly"}}}},
			},
			expected: models.TierPro,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier := ts.server.resolveTier(tt.session)
			require.NotNil(t, tier)
			assert.Equal(t, tt.expected, tier.ID)
		})
	}
}

// pkg/tiers/tiers_test.go
package tiers

import (
	"os"
	"path/filepath"
	"testing"

	"builder-licensing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathUsesBuiltin(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "builtin", c.Version)
	require.NotNil(t, c.ByID(models.TierPro))
	assert.Equal(t, 365, c.ByID(models.TierPro).Days)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2025-06",
		"tiers": [
			{"id": "starter", "displayName": "Starter", "days": 30, "stripePriceIds": ["price_s1"]},
			{"id": "pro", "displayName": "Pro", "days": 365, "stripePriceIds": ["price_p1", "price_p2"]}
		]
	}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, c.ByID(models.TierStarter).Days)
	require.NotNil(t, c.ByPriceID("price_p2"))
	assert.Equal(t, models.TierPro, c.ByPriceID("price_p2").ID)
	assert.Nil(t, c.ByPriceID("price_unknown"))
}

func TestValidate_RejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
	}{
		{name: "empty", catalog: Catalog{}},
		{name: "unknown tier id", catalog: Catalog{Tiers: []Tier{{ID: "diamond", Days: 30}}}},
		{name: "duplicate id", catalog: Catalog{Tiers: []Tier{
			{ID: models.TierPro, Days: 30}, {ID: models.TierPro, Days: 60},
		}}},
		{name: "non-positive days", catalog: Catalog{Tiers: []Tier{{ID: models.TierPro, Days: 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.catalog.Validate())
		})
	}
}

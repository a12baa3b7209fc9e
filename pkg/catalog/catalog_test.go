package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Len(t, c.Carbon, 49)
	assert.Equal(t, 1.5, c.CarbonFor("jute bag"))
	assert.Equal(t, 1.5, c.CarbonFor("  Jute Bag "))
	assert.Equal(t, 1.5, c.CarbonFor("Local Cow's Milk (1L)"))
	assert.Zero(t, c.CarbonFor("Jute"))

	r, ok := c.Reward("gov_2")
	require.True(t, ok)
	assert.Equal(t, 5000, r.Cost)
	assert.Equal(t, "Solar Panel Subsidy Voucher", r.Title)

	_, ok = c.Reward("gov_9")
	assert.False(t, ok)
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte("carbon:\n  - name: Clay Pot\n    kg: 0.6\nrewards:\n  - id: gov_1\n    title: Tree\n    cost: 10\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, c.CarbonFor("clay pot"))
	r, ok := c.Reward("gov_1")
	require.True(t, ok)
	assert.Equal(t, 10, r.Cost)
}

func TestParseRejectsDuplicateRewards(t *testing.T) {
	_, err := Parse([]byte("rewards:\n  - id: gov_1\n    cost: 1\n  - id: gov_1\n    cost: 2\n"))
	assert.Error(t, err)
}

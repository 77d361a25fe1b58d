package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegion() *Region {
	return &Region{
		Key:  "aldmark",
		Name: "Aldmark",
		Coins: []*Coin{
			{Key: "aldmark_crown", Name: "Crown", UnitValue: 240},
			{Key: "aldmark_shilling", Name: "Shilling", UnitValue: 12},
			{Key: "aldmark_penny", Name: "Penny", UnitValue: 1},
		},
		ExchangeRates: map[string]float64{"vessary": 1.2},
	}
}

func TestRegionValidate(t *testing.T) {
	assert.NoError(t, validRegion().Validate())
}

func TestRegionValidateEmptyKey(t *testing.T) {
	r := validRegion()
	r.Key = ""
	assert.Error(t, r.Validate())
}

func TestRegionValidateNoCoins(t *testing.T) {
	r := validRegion()
	r.Coins = nil
	assert.Error(t, r.Validate())
}

func TestRegionValidateDuplicateCoinKey(t *testing.T) {
	r := validRegion()
	r.Coins[1].Key = r.Coins[0].Key
	assert.Error(t, r.Validate())
}

func TestRegionValidateNoBaseCoin(t *testing.T) {
	r := validRegion()
	r.Coins = r.Coins[:2] // drop the penny
	assert.Error(t, r.Validate())
}

func TestRegionValidateNonPositiveRate(t *testing.T) {
	r := validRegion()
	r.ExchangeRates["vessary"] = 0
	assert.Error(t, r.Validate())
}

func TestCoinValidate(t *testing.T) {
	c := &Coin{Key: "penny", Name: "Penny", UnitValue: 1}
	assert.NoError(t, c.Validate())

	assert.Error(t, (&Coin{Name: "Penny", UnitValue: 1}).Validate())
	assert.Error(t, (&Coin{Key: "penny", UnitValue: 1}).Validate())
	assert.Error(t, (&Coin{Key: "penny", Name: "Penny"}).Validate())
}

func TestRegionCoinByKey(t *testing.T) {
	r := validRegion()
	coin, ok := r.CoinByKey("aldmark_shilling")
	require.True(t, ok)
	assert.Equal(t, 12, coin.UnitValue)

	_, ok = r.CoinByKey("doubloon")
	assert.False(t, ok)
}

func TestLoadRegions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aldmark.yaml"), []byte(`
key: aldmark
name: Aldmark
coins:
  - key: aldmark_penny
    name: Penny
    value: 1
  - key: aldmark_crown
    name: Crown
    img: coins/crown.png
    value: 240
exchange_rates:
  vessary: 1.2
`), 0644))

	regions, err := LoadRegions(dir)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	r := regions[0]
	assert.Equal(t, "aldmark", r.Key)
	// Coins sorted highest UnitValue first regardless of file order.
	assert.Equal(t, "aldmark_crown", r.Coins[0].Key)
	assert.Equal(t, "coins/crown.png", r.Coins[0].Img)
	assert.Equal(t, "aldmark_penny", r.Coins[1].Key)

	rate, ok := r.Rate("vessary")
	require.True(t, ok)
	assert.Equal(t, 1.2, rate)
}

func TestLoadRegionsSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not yaml"), 0644))

	regions, err := LoadRegions(dir)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestLoadRegionsInvalidRegion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
key: broken
name: Broken
coins:
  - key: broken_coin
    name: Coin
    value: 5
`), 0644))

	_, err := LoadRegions(dir)
	assert.Error(t, err)
}

func TestLoadRegionsMissingDir(t *testing.T) {
	_, err := LoadRegions("/nonexistent/regions")
	assert.Error(t, err)
}

package console_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tmarsden/coffers/internal/console"
	"github.com/tmarsden/coffers/internal/grant"
	"github.com/tmarsden/coffers/internal/ledger"
	"github.com/tmarsden/coffers/internal/macro"
	"github.com/tmarsden/coffers/internal/purse"
)

func testRegions() []*ledger.Region {
	return []*ledger.Region{
		{
			Key:  "aldmark",
			Name: "Aldmark",
			Coins: []*ledger.Coin{
				{Key: "aldmark_crown", Name: "Crown", UnitValue: 240},
				{Key: "aldmark_shilling", Name: "Shilling", UnitValue: 12},
				{Key: "aldmark_penny", Name: "Penny", UnitValue: 1},
			},
			ExchangeRates: map[string]float64{"vessary": 1.25},
		},
		{
			Key:  "vessary",
			Name: "Vessary",
			Coins: []*ledger.Coin{
				{Key: "vessary_ducat", Name: "Ducat", UnitValue: 240},
				{Key: "vessary_grosso", Name: "Grosso", UnitValue: 12},
				{Key: "vessary_soldo", Name: "Soldo", UnitValue: 1},
			},
			ExchangeRates: map[string]float64{"aldmark": 0.8},
		},
	}
}

type fixture struct {
	engine   *ledger.Engine
	registry *ledger.Registry
	store    *purse.Store
	book     *grant.Book
	macros   *macro.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	registry, err := ledger.NewRegistry(testRegions(), logger)
	require.NoError(t, err)
	require.NoError(t, registry.SetCurrent(context.Background(), "aldmark"))

	store := purse.NewStore()
	engine := ledger.NewEngine(registry, store, logger)
	book := grant.NewBook(engine, logger)
	macros := macro.NewManager(logger)
	t.Cleanup(macros.Close)

	return &fixture{engine: engine, registry: registry, store: store, book: book, macros: macros}
}

func (f *fixture) run(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	c := console.NewConsole(f.engine, f.registry, f.book, f.macros, strings.NewReader(input), &out, zaptest.NewLogger(t))
	require.NoError(t, c.Start())
	return out.String()
}

func seedHoldings(t *testing.T, store *purse.Store, characterID int64, hs []purse.Holding) {
	t.Helper()
	require.NoError(t, store.CreateHoldings(context.Background(), characterID, hs))
}

func TestConsoleQuit(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "quit\n")
	assert.Contains(t, out, "goodbye.")
}

func TestConsoleUnknownCommand(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "frobnicate\nquit\n")
	assert.Contains(t, out, `unknown command "frobnicate"`)
}

func TestConsoleHelpListsCommands(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "help\nquit\n")
	assert.Contains(t, out, "pay <character> <money>")
	assert.Contains(t, out, "offer <claims> <money>")
	assert.Contains(t, out, "quit")
}

func TestConsoleCreditThenBalance(t *testing.T) {
	f := newFixture(t)
	seedHoldings(t, f.store, 1, []purse.Holding{
		purse.NewHolding(1, "aldmark", "aldmark_crown", 0, 240),
		purse.NewHolding(1, "aldmark", "aldmark_shilling", 0, 12),
		purse.NewHolding(1, "aldmark", "aldmark_penny", 0, 1),
	})

	out := f.run(t, "credit 1 2gc 3ss\nbalance 1\nquit\n")
	assert.Contains(t, out, "2gc 3ss in aldmark")
	assert.Contains(t, out, "aldmark_crown x2")
	assert.Contains(t, out, "aldmark_shilling x3")
	assert.Contains(t, out, "total in aldmark: 2gc 3ss")
}

func TestConsolePayInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	seedHoldings(t, f.store, 1, []purse.Holding{
		purse.NewHolding(1, "aldmark", "aldmark_penny", 3, 1),
	})

	out := f.run(t, "pay 1 5gc\nquit\n")
	assert.Contains(t, out, "insufficient funds")
}

func TestConsolePayBadCharacterID(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "pay bob 5gc\nquit\n")
	assert.Contains(t, out, "character must be a numeric ID")
}

func TestConsoleRegionListAndSet(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "region\nregion set vessary\nregion\nquit\n")
	assert.Contains(t, out, "aldmark: Aldmark (current)")
	assert.Contains(t, out, "current region is now vessary.")
	assert.Contains(t, out, "vessary: Vessary (current)")
}

func TestConsoleRegionSetUnknown(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "region set atlantis\nquit\n")
	assert.Contains(t, out, "unknown region")
}

func TestConsoleOfferPublishAndClaim(t *testing.T) {
	f := newFixture(t)
	seedHoldings(t, f.store, 4, []purse.Holding{
		purse.NewHolding(4, "aldmark", "aldmark_crown", 0, 240),
		purse.NewHolding(4, "aldmark", "aldmark_shilling", 0, 12),
		purse.NewHolding(4, "aldmark", "aldmark_penny", 0, 1),
	})

	offer, err := f.book.Publish("1gc 6ss", 2)
	require.NoError(t, err)

	out := f.run(t, "offers\nclaim "+offer.ID+" 4\nbalance 4\nquit\n")
	assert.Contains(t, out, "1gc 6ss, 2 remaining")
	assert.Contains(t, out, "1gc 6ss in aldmark")
	assert.Contains(t, out, "aldmark_crown x1")
	assert.Equal(t, 1, f.book.Remaining(offer.ID))
}

func TestConsoleOfferBadClaims(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "offer many 5gc\nquit\n")
	assert.Contains(t, out, "claims must be a number")
}

func TestConsoleMacro(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.lua"), []byte(`
		function greet()
			return "hail, " .. coffers.format(253)
		end
	`), 0644))
	require.NoError(t, f.macros.Load(dir, 0))

	out := f.run(t, "macro greet\nquit\n")
	assert.Contains(t, out, "hail, 1gc 1ss 1bp")
}

func TestConsoleMacroUndefined(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.lua"), []byte(`-- nothing`), 0644))
	require.NoError(t, f.macros.Load(dir, 0))

	out := f.run(t, "macro missing\nquit\n")
	assert.Contains(t, out, `macro "missing" produced no result.`)
}

func TestConsoleAliases(t *testing.T) {
	f := newFixture(t)
	seedHoldings(t, f.store, 2, []purse.Holding{
		purse.NewHolding(2, "aldmark", "aldmark_penny", 7, 1),
	})

	out := f.run(t, "bal 2\nq\n")
	assert.Contains(t, out, "aldmark_penny x7")
	assert.Contains(t, out, "goodbye.")
}

func TestConsoleEOFExitsCleanly(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "region\n")
	assert.Contains(t, out, "aldmark: Aldmark")
}

func TestParse(t *testing.T) {
	parsed := console.Parse("  PAY 7 5gc 3ss  ")
	assert.Equal(t, "pay", parsed.Command)
	assert.Equal(t, []string{"7", "5gc", "3ss"}, parsed.Args)
	assert.Equal(t, "7 5gc 3ss", parsed.RawArgs)

	assert.Equal(t, console.ParseResult{}, console.Parse("   "))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := console.NewRegistry([]console.Command{
		{Name: "pay"},
		{Name: "pay"},
	})
	assert.Error(t, err)

	_, err = console.NewRegistry([]console.Command{
		{Name: "pay", Aliases: []string{"p"}},
		{Name: "publish", Aliases: []string{"p"}},
	})
	assert.Error(t, err)
}

func TestRegistryResolvesAliases(t *testing.T) {
	r := console.DefaultRegistry()
	cmd, ok := r.Resolve("bal")
	require.True(t, ok)
	assert.Equal(t, "balance", cmd.Name)

	_, ok = r.Resolve("nope")
	assert.False(t, ok)
}

package handler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/coingecko"
	"github.com/admi-n/auditbot/src/internal/contracts"
	"github.com/admi-n/auditbot/src/internal/explorer"
	"github.com/admi-n/auditbot/src/internal/ledger"
)

const (
	pepeEth  = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	brettEth = "0x532f27101965dd16442e59d40670faf5ebb142e4"
)

type discoverFixture struct {
	trending *fakeTrending
	coins    *ledger.FileLedger
	resolver *fakeResolver
	store    *contracts.FileStore
	clock    *fakeClock
	discover *Discover
}

func newDiscoverFixture(t *testing.T) *discoverFixture {
	t.Helper()

	dir := t.TempDir()
	f := &discoverFixture{
		trending: &fakeTrending{details: map[string]internal.CoinDetails{}},
		coins:    ledger.NewFileLedger(filepath.Join(dir, ledger.FileName(ledger.NamespaceCoins))),
		resolver: &fakeResolver{sources: map[string]explorer.Resolution{}},
		store:    contracts.NewFileStore(filepath.Join(dir, "data")),
		clock:    newFakeClock(),
	}

	d, err := NewDiscover(DiscoverConfig{
		Trending: f.trending,
		Coins:    f.coins,
		Resolver: f.resolver,
		Store:    f.store,
		Clock:    f.clock,
	})
	require.NoError(t, err)
	f.discover = d
	return f
}

func TestDiscoverSavesFirstResolvableContract(t *testing.T) {
	t.Parallel()

	f := newDiscoverFixture(t)
	f.trending.coins = []coingecko.Coin{{ID: "brett", Name: "Brett"}}
	f.trending.details["brett"] = internal.CoinDetails{
		ID:            "brett",
		Name:          "Brett",
		TwitterHandle: "BasedBrett",
		Platforms:     map[string]string{"ethereum": pepeEth, "base": brettEth},
	}
	f.resolver.sources[internal.PlatformBasescan+"/"+brettEth] = explorer.Resolution{
		Platform:   internal.PlatformBasescan,
		SourceCode: "contract Brett {}",
	}

	stats, err := f.discover.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)

	assert.Equal(t, []string{
		internal.PlatformEtherscan + "/" + pepeEth,
		internal.PlatformBasescan + "/" + brettEth,
	}, f.resolver.calls, "explorers are tried in the configured order")

	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, internal.NormalizeAddress(brettEth), rec.Address)
	assert.Equal(t, internal.PlatformBasescan, rec.Platform)
	assert.Equal(t, "BasedBrett", rec.TwitterHandle)
	assert.Equal(t, "Brett", rec.Coin.Name)
	assert.True(t, rec.Auditable())

	assert.True(t, f.coins.Has("brett"))
	assert.Equal(t, 1, f.clock.sleepCount())
}

func TestDiscoverRecordsCoinWithoutSource(t *testing.T) {
	t.Parallel()

	f := newDiscoverFixture(t)
	f.trending.coins = []coingecko.Coin{{ID: "sol-meme", Name: "Meme"}, {ID: "pepe", Name: "Pepe"}}
	f.trending.details["sol-meme"] = internal.CoinDetails{ID: "sol-meme", Platforms: map[string]string{"solana": "So1111"}}
	f.trending.details["pepe"] = internal.CoinDetails{ID: "pepe", Platforms: map[string]string{"ethereum": pepeEth}}

	stats, err := f.discover.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NotFound)
	assert.True(t, f.coins.Has("sol-meme"))
	assert.True(t, f.coins.Has("pepe"))

	records, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	stats, err = f.discover.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped, "processed coins are not queried again")
}

func TestDiscoverDetailsFailureIsRetriedNextRun(t *testing.T) {
	t.Parallel()

	f := newDiscoverFixture(t)
	f.trending.coins = []coingecko.Coin{{ID: "missing", Name: "Missing"}}

	stats, err := f.discover.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.False(t, f.coins.Has("missing"))
}

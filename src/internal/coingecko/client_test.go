package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/internal"
)

func TestTrending(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/trending", r.URL.Path)
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(`{"coins":[{"item":{"id":"pepe","name":"Pepe","symbol":"PEPE"}},{"item":{"id":""}},{"item":{"id":"brett","name":"Brett","symbol":"BRETT"}}]}`))
	}))
	defer server.Close()

	coins, err := NewClient(server.URL, "demo-key", server.Client()).Trending(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, Coin{ID: "pepe", Name: "Pepe", Symbol: "PEPE"}, coins[0])
}

func TestDetails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/pepe", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("tickers"))
		assert.Equal(t, "false", r.URL.Query().Get("market_data"))
		_, _ = w.Write([]byte(`{
			"id":"pepe","name":"Pepe",
			"platforms":{"ethereum":"0x6982508145454ce325ddbe47a25d4ec3d2311933","":"","solana":" "},
			"links":{"twitter_screen_name":"pepecoineth"}
		}`))
	}))
	defer server.Close()

	d, err := NewClient(server.URL, "", server.Client()).Details(context.Background(), "pepe")
	require.NoError(t, err)
	assert.Equal(t, "Pepe", d.Name)
	assert.Equal(t, "pepecoineth", d.TwitterHandle)
	assert.Equal(t, map[string]string{"ethereum": "0x6982508145454ce325ddbe47a25d4ec3d2311933"}, d.Platforms)
}

func TestDetailsHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", server.Client()).Details(context.Background(), "x")
	require.ErrorContains(t, err, "429")
}

func TestCandidatesFollowExplorerOrder(t *testing.T) {
	t.Parallel()

	d := internal.CoinDetails{Platforms: map[string]string{
		"polygon-pos":         "0xpoly",
		"matic-network":       "0xmatic",
		"binance-smart-chain": "0xbsc",
		"solana":              "So11111111111111111111111111111111111111112",
		"base":                "0xbase",
	}}

	got := Candidates(d, nil)
	assert.Equal(t, []Candidate{
		{Platform: internal.PlatformBasescan, Address: "0xbase"},
		{Platform: internal.PlatformBscscan, Address: "0xbsc"},
		{Platform: internal.PlatformPolygonscan, Address: "0xmatic"},
	}, got)

	got = Candidates(d, []string{internal.PlatformPolygonscan})
	assert.Equal(t, []Candidate{{Platform: internal.PlatformPolygonscan, Address: "0xmatic"}}, got)
}

func TestExplorerFor(t *testing.T) {
	t.Parallel()

	e, ok := ExplorerFor("Ethereum")
	assert.True(t, ok)
	assert.Equal(t, internal.PlatformEtherscan, e)

	_, ok = ExplorerFor("solana")
	assert.False(t, ok)
}

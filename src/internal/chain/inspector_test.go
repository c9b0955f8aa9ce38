package chain_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/internal/chain"
)

const (
	deployed = "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe"
	empty    = "0x0000000000000000000000000000000000000001"
)

// rpcServer answers eth_getCode with bytecode for the deployed address only
func rpcServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []string        `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_getCode", req.Method)

		result := "0x"
		if len(req.Params) > 0 && req.Params[0] == "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae" {
			result = "0x6080604052"
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInspectorClassifiesAddresses(t *testing.T) {
	t.Parallel()

	srv := rpcServer(t)
	ctx := context.Background()

	inspector, err := chain.Dial(ctx, srv.URL)
	require.NoError(t, err)
	defer inspector.Close()

	ok, err := inspector.HasCode(ctx, deployed)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, chain.ReasonUnverified, inspector.Classify(ctx, deployed))
	assert.Equal(t, chain.ReasonUnsupported, inspector.Classify(ctx, empty))
	assert.Equal(t, chain.ReasonUnknown, inspector.Classify(ctx, "not-hex"))
}

func TestNilInspectorIsUnknown(t *testing.T) {
	t.Parallel()

	var inspector *chain.Inspector
	assert.Equal(t, chain.ReasonUnknown, inspector.Classify(context.Background(), deployed))
	inspector.Close()
}

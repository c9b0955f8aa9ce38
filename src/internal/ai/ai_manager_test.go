package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/config"
	"github.com/admi-n/auditbot/src/internal/ai/client"
)

type stubClient struct {
	got  []client.Request
	out  string
	err  error
	name string
}

func (s *stubClient) Analyze(_ context.Context, r client.Request) (string, error) {
	s.got = append(s.got, r)
	return s.out, s.err
}

func (s *stubClient) GetName() string { return s.name }
func (s *stubClient) Close() error    { return nil }

func TestManagerCompletePassesRequest(t *testing.T) {
	t.Parallel()

	stub := &stubClient{out: "## Critical\n1. bug", name: "stub"}
	m, err := NewManager(ManagerConfig{Client: stub, RequestsPerMin: 600, MaxNewTokens: 1024})
	require.NoError(t, err)

	out, err := m.Complete(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "## Critical\n1. bug", out)
	require.Len(t, stub.got, 1)
	assert.Equal(t, client.Request{SystemPrompt: "system", Prompt: "prompt", MaxNewTokens: 1024}, stub.got[0])
	assert.Equal(t, "stub", m.GetClientInfo())
}

func TestManagerCompleteWrapsClientError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	m, err := NewManager(ManagerConfig{Client: &stubClient{err: boom}})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "", "p")
	require.ErrorIs(t, err, boom)
}

func TestManagerCompleteHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	stub := &stubClient{out: "x"}
	m, err := NewManager(ManagerConfig{Client: stub, RequestsPerMin: 1})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "", "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Complete(ctx, "", "second")
	require.Error(t, err)
	assert.Len(t, stub.got, 1)
}

func TestNewAIClientProviders(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{ProviderReplicate, ProviderOpenAI, ProviderDeepSeek} {
		c, err := NewAIClient(AIClientConfig{Provider: provider, APIKey: "k"})
		require.NoError(t, err, provider)
		assert.NotEmpty(t, c.GetName())
	}

	c, err := NewAIClient(AIClientConfig{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Contains(t, c.GetName(), "Local LLM")

	_, err = NewAIClient(AIClientConfig{Provider: "bard"})
	require.Error(t, err)
	require.Error(t, ValidateProvider("bard"))
	require.NoError(t, ValidateProvider(ProviderReplicate))
}

func TestNewManagerFromSettingsRequiresCredentials(t *testing.T) {
	t.Parallel()

	s := &config.Settings{}
	s.ApplyDefaults()

	_, err := NewManagerFromSettings(s, nil, nil)
	require.ErrorIs(t, err, config.ErrConfigMissing)

	s.AI.Replicate.APIToken = "r8_x"
	m, err := NewManagerFromSettings(s, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, m.GetClientInfo(), "meta/meta-llama-3-70b-instruct")
}

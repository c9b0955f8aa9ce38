package prompts_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/strategy/prompts"
)

func TestBundledTemplatesHavePlaceholder(t *testing.T) {
	t.Parallel()

	names, err := prompts.ListTemplates("audit")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"atx", "bold"}, names)

	for _, name := range names {
		_, err := prompts.LoadAuditTemplate(filepath.Join("audit", name+".md"))
		require.NoError(t, err, name)
	}
}

func TestLoadAuditTemplateFailsFastWithoutPlaceholder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.md")
	require.NoError(t, os.WriteFile(path, []byte("Audit this:\n```solidity\n```\n"), 0o644))

	_, err := prompts.LoadAuditTemplate(path)
	require.ErrorIs(t, err, prompts.ErrPlaceholderMissing)
}

func TestParseAuditTemplateAcceptsCRLF(t *testing.T) {
	t.Parallel()

	tmpl, err := prompts.ParseAuditTemplate("crlf", "Audit:\r\n```\r\n\r\n```\r\n")
	require.NoError(t, err)
	assert.Equal(t, "Audit:\n```\ncontract A {}\n```\n", tmpl.Build("contract A {}"))
}

func TestBuildSubstitutesSourceInsideFence(t *testing.T) {
	t.Parallel()

	tmpl, err := prompts.ParseAuditTemplate("inline", "before\n```\n\n```\nafter ```\n\n```")
	require.NoError(t, err)

	out := tmpl.Build("contract $Token {}")
	assert.Equal(t, "before\n```\ncontract $Token {}\n```\nafter ```\n\n```", out)
}

func TestCapSource(t *testing.T) {
	t.Parallel()

	short, truncated := prompts.CapSource("abc", 5)
	assert.False(t, truncated)
	assert.Equal(t, "abc", short)

	capped, truncated := prompts.CapSource(strings.Repeat("é", 10), 4)
	assert.True(t, truncated)
	assert.Equal(t, "éééé"+prompts.TruncationMarker, capped)

	exact, truncated := prompts.CapSource(strings.Repeat("x", prompts.DefaultMaxInputChars), 0)
	assert.False(t, truncated)
	assert.Len(t, exact, prompts.DefaultMaxInputChars)
}

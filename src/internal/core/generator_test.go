package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/strategy/prompts"
)

type recordingCompleter struct {
	system, prompt string
	out            string
	err            error
}

func (r *recordingCompleter) Complete(_ context.Context, systemPrompt, prompt string) (string, error) {
	r.system, r.prompt = systemPrompt, prompt
	return r.out, r.err
}

func mustTemplate(t *testing.T) *prompts.AuditTemplate {
	t.Helper()
	tmpl, err := prompts.ParseAuditTemplate("test", "Audit this contract:\n\n```\n\n```\n")
	require.NoError(t, err)
	return tmpl
}

func TestGenerateSubstitutesSource(t *testing.T) {
	t.Parallel()

	c := &recordingCompleter{out: "### Critical\n1. x"}
	g := NewGenerator(c, mustTemplate(t))

	report, err := g.Generate(context.Background(), "contract A {}")
	require.NoError(t, err)
	assert.Equal(t, "### Critical\n1. x", report)
	assert.Equal(t, "Audit this contract:\n\n```\ncontract A {}\n```\n", c.prompt)
	assert.Equal(t, prompts.SystemPrompt, c.system)
}

func TestGenerateCapsLongSource(t *testing.T) {
	t.Parallel()

	c := &recordingCompleter{out: "report"}
	g := NewGenerator(c, mustTemplate(t), WithMaxInputChars(10), WithSystemPrompt("sys"))

	_, err := g.Generate(context.Background(), strings.Repeat("a", 50))
	require.NoError(t, err)
	assert.Contains(t, c.prompt, strings.Repeat("a", 10)+prompts.TruncationMarker+"\n```")
	assert.NotContains(t, c.prompt, strings.Repeat("a", 11))
	assert.Equal(t, "sys", c.system)
}

func TestGenerateFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("model overloaded")

	tests := []struct {
		name string
		c    *recordingCompleter
	}{
		{name: "transport error", c: &recordingCompleter{err: boom}},
		{name: "empty completion", c: &recordingCompleter{out: "  \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewGenerator(tt.c, mustTemplate(t)).Generate(context.Background(), "src")
			require.ErrorIs(t, err, ErrGenerationFailed)
		})
	}

	_, err := NewGenerator(&recordingCompleter{err: boom}, mustTemplate(t)).Generate(context.Background(), "src")
	require.ErrorIs(t, err, boom)
}

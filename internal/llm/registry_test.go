package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhold/docvault/internal/common"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) ExtractText(context.Context, string) (ExtractResult, error) {
	return ExtractResult{}, nil
}
func (s stubProvider) ParseText(context.Context, string, string) (ParseResult, error) {
	return ParseResult{}, nil
}

func TestRegistryGetDefaultAndByName(t *testing.T) {
	r := NewRegistry("openai", nil)
	r.Register(stubProvider{name: "openai"})
	r.Register(stubProvider{name: "anthropic"})

	p, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = r.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	assert.Equal(t, []string{"anthropic", "openai"}, r.Names())
}

func TestRegistryGetUnknownIsConfigError(t *testing.T) {
	r := NewRegistry("openai", nil)
	r.Register(stubProvider{name: "openai"})

	_, err := r.Get("gemini")
	require.ErrorIs(t, err, common.ErrProviderConfig)
}

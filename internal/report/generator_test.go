package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRendersTemplate(t *testing.T) {
	g, err := NewGeneratorFromStrings(map[string]string{
		"daily_summary": "<h1>{{.TemplateID}}</h1>",
	})
	require.NoError(t, err)

	payload, err := g.Generate("daily_summary")
	require.NoError(t, err)
	assert.Contains(t, string(payload.HTML), "daily_summary")
	assert.Contains(t, payload.Subject, "daily_summary")
}

func TestGenerateUnknownTemplate(t *testing.T) {
	g, err := NewGeneratorFromStrings(nil)
	require.NoError(t, err)

	_, err = g.Generate("missing")
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "missing", genErr.TemplateID)
}

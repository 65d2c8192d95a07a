package agent

import (
	"testing"

	"github.com/rahul/sentinel/internal/prompts"
	"github.com/stretchr/testify/require"
)

func testPrompts(t *testing.T) *prompts.Manager {
	t.Helper()
	pm, err := prompts.NewManager("")
	require.NoError(t, err)
	return pm
}

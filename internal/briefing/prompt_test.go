package briefing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-briefing/internal/model"
)

func TestLoadPrompt_Defaults(t *testing.T) {
	t.Parallel()

	p, err := LoadPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt(), p)
	assert.Contains(t, p.Instructions, PriorityToolName)
}

func TestLoadPrompt_Overrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: |\n  Deals are SaaS renewals.\n"), 0o644))

	p, err := LoadPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Deals are SaaS renewals.", p.Domain)
	assert.Equal(t, DefaultPrompt().Methodology, p.Methodology)
}

func TestLoadPrompt_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadPrompt(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: [unterminated"), 0o644))
	_, err = LoadPrompt(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse prompt file")
}

func TestPrompt_User(t *testing.T) {
	t.Parallel()

	p := Prompt{Methodology: "M", Domain: "D", Instructions: "Rank these."}
	assert.Equal(t, "M\n\nD", p.System())

	user := p.User([]model.DealContext{{DealID: 1, Text: "Deal ID: 1"}, {DealID: 2, Text: "Deal ID: 2"}})
	assert.Equal(t, "Rank these.\n\nDeals:\n\nDeal ID: 1\n\n---\n\nDeal ID: 2", user)
	assert.Equal(t, 1, strings.Count(user, "---"))
}

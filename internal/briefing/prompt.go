package briefing

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/deal-briefing/internal/model"
)

// contextSeparator divides deal contexts in the user prompt.
const contextSeparator = "\n\n---\n\n"

// Prompt holds the framing text sent with every prioritization request.
type Prompt struct {
	Methodology  string `yaml:"methodology"`
	Domain       string `yaml:"domain"`
	Instructions string `yaml:"instructions"`
}

// DefaultPrompt returns the built-in framing.
func DefaultPrompt() Prompt {
	return Prompt{
		Methodology: `You are a sales operations analyst. Judge each deal by momentum and risk:
recent two-way communication, scheduled next steps, stage progression, time
since the last CRM update, and the size of the opportunity. Silence after a
proposal or a long gap since the last update is a risk signal. A scheduled
meeting or an active email thread with a decision maker is a buying signal.`,
		Domain: `The deals are advisory engagements tracked in Pipedrive. Email history
comes from the account owner's Gmail and shows metadata plus a short preview,
not full message bodies.`,
		Instructions: `Rank every deal below from 1 (most urgent) to N with no gaps and no ties.
For each deal:
- classify health as one of hot, warm, cold, at_risk
- classify urgency as one of immediate, this_week, next_week, no_rush
- give recommended actions and reasoning as short bullet phrases, not full sentences
- list buying or risk signals as short phrases
- extract up to 5 history events from the context, most recent first; never invent events
Use each deal's ID exactly as given. Record the result by calling the ` + PriorityToolName + ` tool once.`,
	}
}

// LoadPrompt reads a YAML file and overrides the default framing with every
// non-empty field it sets. An empty path returns the defaults.
func LoadPrompt(path string) (Prompt, error) {
	p := DefaultPrompt()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "briefing: read prompt file %s", path)
	}

	var override Prompt
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, eris.Wrapf(err, "briefing: parse prompt file %s", path)
	}

	if s := strings.TrimSpace(override.Methodology); s != "" {
		p.Methodology = s
	}
	if s := strings.TrimSpace(override.Domain); s != "" {
		p.Domain = s
	}
	if s := strings.TrimSpace(override.Instructions); s != "" {
		p.Instructions = s
	}
	return p, nil
}

// System returns the system prompt.
func (p Prompt) System() string {
	return strings.TrimSpace(p.Methodology) + "\n\n" + strings.TrimSpace(p.Domain)
}

// User returns the user prompt: instructions followed by every deal context.
func (p Prompt) User(contexts []model.DealContext) string {
	texts := make([]string, len(contexts))
	for i, c := range contexts {
		texts[i] = c.Text
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Instructions))
	b.WriteString("\n\nDeals:\n\n")
	b.WriteString(strings.Join(texts, contextSeparator))
	return b.String()
}

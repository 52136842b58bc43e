package briefing

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/deal-briefing/internal/model"
)

// DealURL builds the Pipedrive link for a deal. A domain containing a dot is
// used as the host verbatim; otherwise it is the company subdomain.
func DealURL(domain string, dealID int64) string {
	domain = strings.TrimSpace(domain)
	host := domain + ".pipedrive.com"
	if strings.Contains(domain, ".") {
		host = domain
	}
	return fmt.Sprintf("https://%s/deal/%d", host, dealID)
}

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
	health  map[model.Health]lipgloss.Style
	urgency lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	badge := func(color string) lipgloss.Style {
		return r.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		label:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("170")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		warning: r.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		health: map[model.Health]lipgloss.Style{
			model.HealthHot:    badge("196"),
			model.HealthWarm:   badge("214"),
			model.HealthCold:   badge("39"),
			model.HealthAtRisk: badge("201"),
		},
		urgency: badge("252"),
	}
}

// RenderText writes a terminal briefing of a. Entries are shown by rank;
// duplicated ranks are flagged rather than resolved.
func RenderText(w io.Writer, a *model.Analysis, domain string) error {
	if domain == "" {
		domain = a.CRMDomain
	}
	st := newStyles(lipgloss.NewRenderer(w))
	p := message.NewPrinter(language.English)

	summaries := make(map[int64]model.DealSummary, len(a.Deals))
	for _, d := range a.Deals {
		summaries[d.ID] = d
	}

	entries := append([]model.DealPriority(nil), a.Analysis.Deals...)
	SortByRank(entries)

	var b strings.Builder
	b.WriteString(st.title.Render(fmt.Sprintf("Deal priorities (%d deals analyzed)", a.DealsAnalyzed)))
	b.WriteString("\n")
	b.WriteString(st.muted.Render("Generated " + a.GeneratedAt.Format("2006-01-02 15:04 MST")))
	b.WriteString("\n\n")

	if len(entries) == 0 {
		b.WriteString("No open deals to prioritize.\n")
	}
	if dups := DuplicateRanks(entries); len(dups) > 0 {
		b.WriteString(st.warning.Render(fmt.Sprintf("Warning: duplicate ranks %v", dups)))
		b.WriteString("\n\n")
	}

	for _, e := range entries {
		title := e.DealTitle
		sum, ok := summaries[e.DealID]
		if title == "" && ok {
			title = sum.Title
		}

		b.WriteString(st.title.Render(fmt.Sprintf("#%d %s", e.Rank, title)))
		b.WriteString("  ")
		b.WriteString(healthStyle(st, e.Health).Render(strings.ToUpper(string(e.Health))))
		b.WriteString(" ")
		b.WriteString(st.urgency.Render(strings.ReplaceAll(string(e.Urgency), "_", " ")))
		b.WriteString("\n")

		if ok {
			b.WriteString(st.muted.Render(dealLine(p, sum)))
			b.WriteString("\n")
		}
		b.WriteString(st.muted.Render(DealURL(domain, e.DealID)))
		b.WriteString("\n")

		writeSection(&b, st, "Actions", e.RecommendedActions)
		writeSection(&b, st, "Reasoning", e.Reasoning)
		writeSection(&b, st, "Signals", e.Signals)
		if len(e.History) > 0 {
			items := make([]string, len(e.History))
			for i, h := range e.History {
				items[i] = h.Date + ": " + h.Summary
			}
			writeSection(&b, st, "History", items)
		}
		b.WriteString("\n")
	}

	if len(a.Warnings) > 0 {
		writeSection(&b, st, "Warnings", a.Warnings)
	}
	if len(a.Diagnostics) > 0 {
		items := make([]string, len(a.Diagnostics))
		for i, d := range a.Diagnostics {
			items[i] = fmt.Sprintf("deal %d %s %s: %s", d.DealID, d.Stage, d.Target, d.Error)
		}
		writeSection(&b, st, "Diagnostics", items)
	}
	if a.Usage != nil {
		b.WriteString(st.muted.Render(p.Sprintf("%s: %d input / %d output tokens, ~$%.4f",
			a.Usage.Model, a.Usage.InputTokens, a.Usage.OutputTokens, a.Usage.EstimatedCostUSD)))
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "briefing: write text")
	}
	return nil
}

// RenderJSON writes a as indented JSON.
func RenderJSON(w io.Writer, a *model.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return eris.Wrap(err, "briefing: encode json")
	}
	return nil
}

func healthStyle(st styles, h model.Health) lipgloss.Style {
	if s, ok := st.health[h]; ok {
		return s
	}
	return st.urgency
}

func dealLine(p *message.Printer, d model.DealSummary) string {
	value := "0"
	if d.Value != nil {
		value = p.Sprintf("%.0f", *d.Value)
	}
	parts := []string{strings.TrimSpace(value + " " + d.Currency)}
	if d.Stage != "" {
		parts = append(parts, d.Stage)
	}
	if d.StalenessDays >= 0 {
		parts = append(parts, "updated "+strconv.Itoa(d.StalenessDays)+"d ago")
	}
	return strings.Join(parts, " · ")
}

func writeSection(b *strings.Builder, st styles, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(st.label.Render(label + ":"))
	b.WriteString("\n")
	for _, it := range items {
		b.WriteString("  • " + it + "\n")
	}
}

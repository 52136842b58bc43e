package briefing

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/deal-briefing/internal/model"
)

// PrioritiesSheet is the worksheet written by WriteXLSX.
const PrioritiesSheet = "Priorities"

var xlsxHeader = []string{
	"Rank", "Deal ID", "Deal", "Health", "Urgency", "Value", "Currency", "Stage",
	"Days Since Update", "Recommended Actions", "Reasoning", "Signals", "History", "Link",
}

// WriteXLSX writes the weekly report workbook: one row per ranked deal.
func WriteXLSX(w io.Writer, a *model.Analysis, domain string) error {
	if domain == "" {
		domain = a.CRMDomain
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(PrioritiesSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	summaries := make(map[int64]model.DealSummary, len(a.Deals))
	for _, d := range a.Deals {
		summaries[d.ID] = d
	}

	entries := append([]model.DealPriority(nil), a.Analysis.Deals...)
	SortByRank(entries)

	for _, e := range entries {
		sum := summaries[e.DealID]
		title := e.DealTitle
		if title == "" {
			title = sum.Title
		}

		row := sheet.AddRow()
		row.AddCell().SetInt(e.Rank)
		row.AddCell().SetInt64(e.DealID)
		row.AddCell().SetString(title)
		row.AddCell().SetString(string(e.Health))
		row.AddCell().SetString(string(e.Urgency))
		if sum.Value != nil {
			row.AddCell().SetFloat(*sum.Value)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(sum.Currency)
		row.AddCell().SetString(sum.Stage)
		row.AddCell().SetInt(sum.StalenessDays)
		row.AddCell().SetString(strings.Join(e.RecommendedActions, "\n"))
		row.AddCell().SetString(strings.Join(e.Reasoning, "\n"))
		row.AddCell().SetString(strings.Join(e.Signals, "\n"))
		row.AddCell().SetString(historyText(e.History))
		row.AddCell().SetString(DealURL(domain, e.DealID))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func historyText(h []model.HistoryEntry) string {
	lines := make([]string, len(h))
	for i, e := range h {
		lines[i] = e.Date + ": " + e.Summary
	}
	return strings.Join(lines, "\n")
}

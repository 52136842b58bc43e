package briefing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/deal-briefing/internal/model"
)

// NoCommunicationSentinel replaces the email history of a deal whose
// contacts have no messages in the lookback window.
const NoCommunicationSentinel = "No email communication found with this deal's contacts."

const (
	// previewLimit bounds each message preview, in runes.
	previewLimit = 200
	// DefaultActivityLimit bounds the activities listed per deal.
	DefaultActivityLimit = 10
)

// BuildDealContext renders the fixed-shape text block describing one deal.
// It performs no I/O. The caller bounds activities and bounds comms to
// maxEmails per contact.
func BuildDealContext(deal model.Deal, stages map[int64]string, contacts []model.Contact, activities []model.Activity, comms []model.CommunicationRecord, now time.Time) model.DealContext {
	var b strings.Builder

	fmt.Fprintf(&b, "Deal ID: %d\n", deal.ID)
	fmt.Fprintf(&b, "Title: %s\n", deal.Title)
	fmt.Fprintf(&b, "Organization: %s\n", orDefault(deal.OrgName, "Unknown"))
	fmt.Fprintf(&b, "Value: %s\n", strings.TrimSpace(formatValue(deal.Value)+" "+deal.Currency))
	fmt.Fprintf(&b, "Stage: %s\n", orDefault(stages[deal.StageID], "Unknown"))
	fmt.Fprintf(&b, "Days Since Update: %d\n", deal.StalenessDays(now))
	fmt.Fprintf(&b, "Contacts: %s\n", formatContacts(contacts))

	b.WriteString("Recent Activities:\n")
	if len(activities) == 0 {
		b.WriteString("None\n")
	}
	for _, a := range activities {
		status := "open"
		if a.Done {
			status = "done"
		}
		fmt.Fprintf(&b, "- [%s] %s: %s (%s)\n", orDefault(a.DueDate, "no date"), orDefault(a.Type, "activity"), a.Subject, status)
	}

	b.WriteString("Email History:\n")
	if len(comms) == 0 {
		b.WriteString(NoCommunicationSentinel)
	}
	for i, c := range comms {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s -> %s | Subject: %s | %s", c.Date, c.From, c.To, c.Subject, truncateRunes(oneLine(c.Preview), previewLimit))
	}

	return model.DealContext{DealID: deal.ID, Text: b.String()}
}

// HeaderOnlyContext is the context used when a deal's enrichment could not
// complete: header fields only, with no contacts and the no-communication
// sentinel.
func HeaderOnlyContext(deal model.Deal, stages map[int64]string, now time.Time) model.DealContext {
	return BuildDealContext(deal, stages, nil, nil, nil, now)
}

func formatValue(v *float64) string {
	if v == nil {
		return "0"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatContacts(contacts []model.Contact) string {
	if len(contacts) == 0 {
		return "None"
	}
	parts := make([]string, len(contacts))
	for i, c := range contacts {
		if c.HasEmail() {
			parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.Email)
		} else {
			parts[i] = fmt.Sprintf("%s (no email on file)", c.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

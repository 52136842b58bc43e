package briefing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/deal-briefing/internal/model"
)

func TestBuildDealContext_FullShape(t *testing.T) {
	t.Parallel()

	updated := testNow.Add(-4 * 24 * time.Hour)
	deal := model.Deal{ID: 101, Title: "Acme expansion", Value: ptr(12500.0), Currency: "USD", StageID: 3, OrgName: "Acme", UpdatedAt: &updated}
	contacts := []model.Contact{{ID: 1, Name: "Jane", Email: "jane@acme.com"}, {ID: 2, Name: "Raj"}}
	acts := []model.Activity{{Subject: "Pricing call", Type: "call", DueDate: "2026-10-10", Done: true}}
	comms := []model.CommunicationRecord{
		{From: "jane@acme.com", To: "me@sells.com", Subject: "Re: proposal", Date: "Mon, 12 Oct 2026", Preview: "Looks good,\n  let's talk"},
	}

	dc := BuildDealContext(deal, map[int64]string{3: "Proposal Sent"}, contacts, acts, comms, testNow)

	want := strings.Join([]string{
		"Deal ID: 101",
		"Title: Acme expansion",
		"Organization: Acme",
		"Value: 12500 USD",
		"Stage: Proposal Sent",
		"Days Since Update: 4",
		"Contacts: Jane (jane@acme.com), Raj (no email on file)",
		"Recent Activities:",
		"- [2026-10-10] call: Pricing call (done)",
		"Email History:",
		"[Mon, 12 Oct 2026] jane@acme.com -> me@sells.com | Subject: Re: proposal | Looks good, let's talk",
	}, "\n")
	assert.Equal(t, int64(101), dc.DealID)
	assert.Equal(t, want, dc.Text)
}

func TestBuildDealContext_Fallbacks(t *testing.T) {
	t.Parallel()

	dc := BuildDealContext(model.Deal{ID: 5, Title: "Bare"}, nil, nil, nil, nil, testNow)

	assert.Contains(t, dc.Text, "Organization: Unknown\n")
	assert.Contains(t, dc.Text, "Value: 0\n")
	assert.Contains(t, dc.Text, "Stage: Unknown\n")
	assert.Contains(t, dc.Text, "Days Since Update: -1\n")
	assert.Contains(t, dc.Text, "Contacts: None\n")
	assert.Contains(t, dc.Text, "Recent Activities:\nNone\n")
	assert.True(t, strings.HasSuffix(dc.Text, NoCommunicationSentinel))
}

func TestBuildDealContext_SentinelWithContacts(t *testing.T) {
	t.Parallel()

	contacts := []model.Contact{{ID: 1, Name: "Jane", Email: "jane@acme.com"}}
	dc := BuildDealContext(model.Deal{ID: 6, Title: "Quiet"}, nil, contacts, nil, []model.CommunicationRecord{}, testNow)

	assert.NotEmpty(t, dc.Text)
	assert.Contains(t, dc.Text, "Email History:\n"+NoCommunicationSentinel)
	assert.Contains(t, dc.Text, "Contacts: Jane (jane@acme.com)")
}

func TestBuildDealContext_PreviewTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 250)
	comms := []model.CommunicationRecord{{From: "a", To: "b", Subject: "s", Date: "d", Preview: long}}
	dc := BuildDealContext(model.Deal{ID: 7}, nil, nil, nil, comms, testNow)

	assert.Contains(t, dc.Text, strings.Repeat("é", 200)+"...")
	assert.NotContains(t, dc.Text, strings.Repeat("é", 201))
}

func TestHeaderOnlyContext(t *testing.T) {
	t.Parallel()

	dc := HeaderOnlyContext(model.Deal{ID: 8, Title: "Broken", StageID: 2}, map[int64]string{2: "Qualified"}, testNow)
	assert.Contains(t, dc.Text, "Stage: Qualified")
	assert.Contains(t, dc.Text, "Contacts: None")
	assert.Contains(t, dc.Text, NoCommunicationSentinel)
}

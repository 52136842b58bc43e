package model

import (
	"strings"
	"time"
)

// Deal is a read-only snapshot of an open CRM deal for the duration of one run.
type Deal struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Value     *float64   `json:"value,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	StageID   int64      `json:"stage_id"`
	OrgName   string     `json:"org_name,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// StalenessDays returns the whole days elapsed since the deal was last
// updated, or -1 when the CRM reported no update timestamp.
func (d Deal) StalenessDays(now time.Time) int {
	if d.UpdatedAt == nil {
		return -1
	}
	days := int(now.Sub(*d.UpdatedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// EmailAddress is one email entry on a CRM person record.
type EmailAddress struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Label   string `json:"label,omitempty"`
}

// Person is a CRM person as associated with a deal, before email resolution.
type Person struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Emails []EmailAddress `json:"emails,omitempty"`
}

// Contact is a deal participant with a single resolved email address.
// Email is empty when no address is on file.
type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// HasEmail reports whether an address was resolved for the contact.
func (c Contact) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

// Activity is a CRM activity (call, meeting, task) logged against a deal.
type Activity struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Type    string `json:"type"`
	DueDate string `json:"due_date,omitempty"`
	Done    bool   `json:"done"`
	Note    string `json:"note,omitempty"`
}

// CommunicationRecord is message metadata for one email exchanged with a contact.
// Date is kept exactly as the mailbox reported it.
type CommunicationRecord struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Preview string `json:"preview"`
}

// DealContext is the bounded text block describing one deal to the model.
type DealContext struct {
	DealID int64  `json:"deal_id"`
	Text   string `json:"text"`
}

func (c DealContext) String() string {
	return c.Text
}

// DealSummary carries the deal header fields the presentation layer shows
// alongside a priority entry.
type DealSummary struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Value         *float64 `json:"value,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Stage         string   `json:"stage,omitempty"`
	StalenessDays int      `json:"staleness_days"`
}

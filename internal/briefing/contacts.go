package briefing

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-briefing/internal/model"
)

// DefaultMaxContacts bounds how many contacts per deal are searched.
const DefaultMaxContacts = 5

// ResolveContacts returns the deal's persons as contacts with one resolved
// email each. Persons repeated across deal associations are collapsed to the
// first occurrence. A source failure yields an empty list and the error.
func ResolveContacts(ctx context.Context, src DealSource, dealID int64, maxContacts int) Outcome[[]model.Contact] {
	persons, err := src.DealPersons(ctx, dealID)
	if err != nil {
		return Outcome[[]model.Contact]{
			Value: []model.Contact{},
			Err:   eris.Wrapf(err, "resolve contacts for deal %d", dealID),
		}
	}
	if maxContacts <= 0 {
		maxContacts = DefaultMaxContacts
	}

	seen := make(map[int64]bool, len(persons))
	contacts := make([]model.Contact, 0, len(persons))
	for _, p := range persons {
		if p.ID != 0 {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
		}
		contacts = append(contacts, model.Contact{
			ID:    p.ID,
			Name:  strings.TrimSpace(p.Name),
			Email: ResolveEmail(p.Emails),
		})
		if len(contacts) == maxContacts {
			break
		}
	}
	return Ok(contacts)
}

// ResolveEmail picks the primary address, else the first non-blank listed
// address, else "".
func ResolveEmail(emails []model.EmailAddress) string {
	for _, e := range emails {
		if e.Primary && strings.TrimSpace(e.Value) != "" {
			return strings.TrimSpace(e.Value)
		}
	}
	for _, e := range emails {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

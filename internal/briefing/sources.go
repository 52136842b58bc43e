package briefing

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/pkg/gmail"
	"github.com/sells-group/deal-briefing/pkg/pipedrive"
)

// Owner is the CRM user a run is scoped to.
type Owner struct {
	ID     int64
	Name   string
	Domain string
}

// DealSource is the CRM capability the pipeline consumes.
type DealSource interface {
	// CurrentUser validates the credentials and identifies the deal owner.
	CurrentUser(ctx context.Context) (*Owner, error)
	ListOpenDeals(ctx context.Context, ownerID int64, limit int) ([]model.Deal, error)
	StageNames(ctx context.Context) (map[int64]string, error)
	DealPersons(ctx context.Context, dealID int64) ([]model.Person, error)
	RecentActivities(ctx context.Context, dealID int64, limit int) ([]model.Activity, error)
}

// Mailbox is the communication-history capability the pipeline consumes.
type Mailbox interface {
	// Validate checks that the mailbox credentials work.
	Validate(ctx context.Context) error
	// Search returns up to maxResults messages exchanged with email since
	// the given time, newest first.
	Search(ctx context.Context, email string, since time.Time, maxResults int) ([]model.CommunicationRecord, error)
}

// pipedriveSource adapts a pipedrive.Client to DealSource.
type pipedriveSource struct {
	client pipedrive.Client
}

// NewPipedriveSource wraps a Pipedrive client as a DealSource.
func NewPipedriveSource(c pipedrive.Client) DealSource {
	return &pipedriveSource{client: c}
}

func (s *pipedriveSource) CurrentUser(ctx context.Context) (*Owner, error) {
	u, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return &Owner{ID: u.ID, Name: u.Name, Domain: u.CompanyDomain}, nil
}

func (s *pipedriveSource) ListOpenDeals(ctx context.Context, ownerID int64, limit int) ([]model.Deal, error) {
	deals, err := s.client.ListOpenDeals(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Deal, len(deals))
	for i, d := range deals {
		out[i] = model.Deal{
			ID:        d.ID,
			Title:     d.Title,
			Value:     d.Value,
			Currency:  d.Currency,
			StageID:   d.StageID,
			OrgName:   d.OrgName,
			UpdatedAt: d.UpdatedAt(),
		}
	}
	return out, nil
}

func (s *pipedriveSource) StageNames(ctx context.Context) (map[int64]string, error) {
	stages, err := s.client.ListStages(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(stages))
	for _, st := range stages {
		names[st.ID] = st.Name
	}
	return names, nil
}

func (s *pipedriveSource) DealPersons(ctx context.Context, dealID int64) ([]model.Person, error) {
	persons, err := s.client.DealPersons(ctx, dealID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Person, len(persons))
	for i, p := range persons {
		emails := make([]model.EmailAddress, len(p.Emails))
		for j, e := range p.Emails {
			emails[j] = model.EmailAddress{Value: e.Value, Primary: e.Primary, Label: e.Label}
		}
		out[i] = model.Person{ID: p.ID, Name: p.Name, Emails: emails}
	}
	return out, nil
}

func (s *pipedriveSource) RecentActivities(ctx context.Context, dealID int64, limit int) ([]model.Activity, error) {
	acts, err := s.client.DealActivities(ctx, dealID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Activity, len(acts))
	for i, a := range acts {
		out[i] = model.Activity{
			ID:      a.ID,
			Subject: a.Subject,
			Type:    a.Type,
			DueDate: a.DueDate,
			Done:    a.Done,
			Note:    a.Note,
		}
	}
	return out, nil
}

// gmailMailbox adapts a gmail.Client to Mailbox.
type gmailMailbox struct {
	client gmail.Client
}

// NewGmailMailbox wraps a Gmail client as a Mailbox.
func NewGmailMailbox(c gmail.Client) Mailbox {
	return &gmailMailbox{client: c}
}

func (m *gmailMailbox) Validate(ctx context.Context) error {
	p, err := m.client.Profile(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.EmailAddress) == "" {
		return eris.New("gmail: profile has no email address")
	}
	return nil
}

func (m *gmailMailbox) Search(ctx context.Context, email string, since time.Time, maxResults int) ([]model.CommunicationRecord, error) {
	msgs, err := m.client.Search(ctx, email, since, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]model.CommunicationRecord, len(msgs))
	for i, msg := range msgs {
		out[i] = model.CommunicationRecord{
			From:    msg.From,
			To:      msg.To,
			Subject: msg.Subject,
			Date:    msg.Date,
			Preview: msg.Snippet,
		}
	}
	return out, nil
}

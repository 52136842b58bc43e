package pipedrive

import (
	"encoding/json"
	"strings"
	"time"
)

// timeLayout is the timestamp format Pipedrive uses for update_time fields.
const timeLayout = "2006-01-02 15:04:05"

// User is a Pipedrive user.
type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	CompanyDomain string `json:"company_domain"`
}

// Deal is a Pipedrive deal record.
type Deal struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Value      *float64 `json:"value"`
	Currency   string   `json:"currency"`
	StageID    int64    `json:"stage_id"`
	Status     string   `json:"status"`
	OrgName    string   `json:"org_name"`
	UpdateTime string   `json:"update_time"`
}

// UpdatedAt parses UpdateTime (UTC). It returns nil when the field is empty
// or malformed.
func (d Deal) UpdatedAt() *time.Time {
	s := strings.TrimSpace(d.UpdateTime)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil
		}
	}
	return &t
}

// Stage is a pipeline stage.
type Stage struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PipelineID int64  `json:"pipeline_id"`
}

// Email is one address on a person record.
type Email struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Label   string `json:"label"`
}

// Person is a Pipedrive person. Pipedrive returns the email field either as
// a list of Email objects or, on older accounts, a bare string.
type Person struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Emails []Email `json:"-"`
}

// UnmarshalJSON accepts both email encodings.
func (p *Person) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    int64           `json:"id"`
		Name  string          `json:"name"`
		Email json.RawMessage `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.Name = raw.Name
	p.Emails = nil

	if len(raw.Email) == 0 || string(raw.Email) == "null" {
		return nil
	}

	var list []Email
	if err := json.Unmarshal(raw.Email, &list); err == nil {
		p.Emails = list
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Email, &single); err == nil && single != "" {
		p.Emails = []Email{{Value: single, Primary: true}}
	}
	return nil
}

// Activity is a Pipedrive activity.
type Activity struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Type    string `json:"type"`
	DueDate string `json:"due_date"`
	Done    bool   `json:"done"`
	Note    string `json:"note"`
}

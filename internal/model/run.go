package model

import "time"

// RunStatus is the terminal state of a stored briefing run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// BriefingRequest holds the caller-supplied bounds for one run.
type BriefingRequest struct {
	Limit     int  `json:"limit"`
	EmailDays int  `json:"email_days"`
	MaxEmails int  `json:"max_emails"`
	Verbose   bool `json:"verbose,omitempty"`
}

// BriefingRun is a persisted briefing run.
type BriefingRun struct {
	ID            string          `json:"id"`
	Status        RunStatus       `json:"status"`
	Request       BriefingRequest `json:"request"`
	DealsAnalyzed int             `json:"deals_analyzed"`
	Analysis      *Analysis       `json:"analysis,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

package model

import (
	"strings"
	"time"
)

// Health classifies the momentum of a deal.
type Health string

const (
	HealthHot    Health = "hot"
	HealthWarm   Health = "warm"
	HealthCold   Health = "cold"
	HealthAtRisk Health = "at_risk"
)

// Healths lists the closed set of health classifications.
var Healths = []Health{HealthHot, HealthWarm, HealthCold, HealthAtRisk}

// Valid reports whether h is one of the closed set of health values.
func (h Health) Valid() bool {
	for _, v := range Healths {
		if h == v {
			return true
		}
	}
	return false
}

// ParseHealth case-folds s and matches it against the closed set.
func ParseHealth(s string) (Health, bool) {
	h := Health(normalizeEnum(s))
	return h, h.Valid()
}

// Urgency classifies how soon a deal needs attention.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyThisWeek  Urgency = "this_week"
	UrgencyNextWeek  Urgency = "next_week"
	UrgencyNoRush    Urgency = "no_rush"
)

// Urgencies lists the closed set of urgency classifications.
var Urgencies = []Urgency{UrgencyImmediate, UrgencyThisWeek, UrgencyNextWeek, UrgencyNoRush}

// Valid reports whether u is one of the closed set of urgency values.
func (u Urgency) Valid() bool {
	for _, v := range Urgencies {
		if u == v {
			return true
		}
	}
	return false
}

// ParseUrgency case-folds s and matches it against the closed set.
func ParseUrgency(s string) (Urgency, bool) {
	u := Urgency(normalizeEnum(s))
	return u, u.Valid()
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// MaxHistoryEntries bounds the history list on a DealPriority.
const MaxHistoryEntries = 5

// HistoryEntry is one dated event the model extracted from a deal's context.
type HistoryEntry struct {
	Date    string `json:"date" jsonschema_description:"Short date label taken from the context, e.g. 2026-10-02 or Oct 2"`
	Summary string `json:"summary" jsonschema_description:"One-line summary of what happened"`
}

// DealPriority is the model's assessment of a single deal.
type DealPriority struct {
	DealID             int64          `json:"deal_id" jsonschema_description:"Deal ID exactly as given in the context"`
	DealTitle          string         `json:"deal_title,omitempty" jsonschema_description:"Deal title as given in the context"`
	Rank               int            `json:"rank" jsonschema:"minimum=1" jsonschema_description:"Unique rank, 1 is most urgent; ranks run 1..N with no gaps or ties"`
	Health             Health         `json:"health" jsonschema:"enum=hot,enum=warm,enum=cold,enum=at_risk"`
	Urgency            Urgency        `json:"urgency" jsonschema:"enum=immediate,enum=this_week,enum=next_week,enum=no_rush"`
	RecommendedActions []string       `json:"recommended_actions" jsonschema:"minItems=1" jsonschema_description:"Short bullet phrases, not full sentences"`
	Reasoning          []string       `json:"reasoning" jsonschema:"minItems=1" jsonschema_description:"Short bullet phrases explaining the rank"`
	Signals            []string       `json:"signals" jsonschema_description:"Buying or risk signals observed in the context"`
	History            []HistoryEntry `json:"history" jsonschema:"maxItems=5" jsonschema_description:"Up to 5 events from the context, most recent first; never invented"`
}

// PriorityResult is the ranked collection returned by the prioritization engine.
type PriorityResult struct {
	Deals []DealPriority `json:"deals" jsonschema_description:"One entry per submitted deal"`
}

// Usage records model token consumption for a run.
type Usage struct {
	Model            string  `json:"model"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Diagnostic records an enrichment failure that was recovered locally.
type Diagnostic struct {
	DealID int64  `json:"deal_id"`
	Stage  string `json:"stage"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error"`
}

// Analysis is the response of one briefing run.
type Analysis struct {
	RunID         string         `json:"run_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	DealsAnalyzed int            `json:"deals_analyzed"`
	CRMDomain     string         `json:"crm_domain,omitempty"`
	Analysis      PriorityResult `json:"analysis"`
	Deals         []DealSummary  `json:"deals,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Diagnostics   []Diagnostic   `json:"diagnostics,omitempty"`
	Usage         *Usage         `json:"usage,omitempty"`
}

package briefing

import "github.com/sells-group/deal-briefing/internal/model"

// Diagnostic stages.
const (
	StageContacts       = "contacts"
	StageActivities     = "activities"
	StageCommunications = "communications"
	StageEnrichment     = "enrichment"
)

// Outcome is the result of one enrichment sub-fetch. Value holds the
// substitute (usually empty) when Err is set, so callers can always use it.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Failed records err with the zero value as substitute.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// Diagnostic collapses a failed outcome into a Diagnostic. It returns nil
// on success.
func (o Outcome[T]) Diagnostic(dealID int64, stage, target string) *model.Diagnostic {
	if o.Err == nil {
		return nil
	}
	return &model.Diagnostic{
		DealID: dealID,
		Stage:  stage,
		Target: target,
		Error:  o.Err.Error(),
	}
}

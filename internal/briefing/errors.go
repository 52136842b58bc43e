package briefing

import (
	"errors"
	"fmt"
)

// Kind classifies a run failure.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindCredential     Kind = "credential"
	KindUpstream       Kind = "upstream"
	KindModelCall      Kind = "model_call"
	KindModelResponse  Kind = "model_response"
)

// Failure is the typed error returned by Service.Run. Service names the
// collaborator involved, when there is one.
type Failure struct {
	Kind    Kind
	Service string
	Err     error
}

func (f *Failure) Error() string {
	if f.Service != "" {
		return fmt.Sprintf("%s (%s): %v", f.Kind, f.Service, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind Kind, service string, err error) *Failure {
	return &Failure{Kind: kind, Service: service, Err: err}
}

// KindOf returns the failure kind carried by err.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

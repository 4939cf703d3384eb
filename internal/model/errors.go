package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures across the engine.
type ErrorKind string

const (
	InvalidInput         ErrorKind = "InvalidInput"
	FetchError           ErrorKind = "FetchError"
	ParseError           ErrorKind = "ParseError"
	RuleEvaluationError  ErrorKind = "RuleEvaluationError"
	Timeout              ErrorKind = "Timeout"
	OrchestrationFailure ErrorKind = "OrchestrationFailure"
	Cancelled            ErrorKind = "Cancelled"
)

// ScanError carries a kind plus the page or rule it concerns.
type ScanError struct {
	Kind ErrorKind
	URL  string
	Rule string
	Err  error
}

// NewError wraps err with kind.
func NewError(kind ErrorKind, err error) *ScanError {
	return &ScanError{Kind: kind, Err: err}
}

func (e *ScanError) Error() string {
	switch {
	case e.URL != "" && e.Rule != "":
		return fmt.Sprintf("%s: %s on %s: %v", e.Kind, e.Rule, e.URL, e.Err)
	case e.URL != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	case e.Rule != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Rule, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *ScanError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first ScanError in err's chain, or "" when
// there is none.
func KindOf(err error) ErrorKind {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// AsRunError converts err into its serializable form. Errors without a
// ScanError in their chain are reported with the fallback kind.
func AsRunError(err error, fallback ErrorKind) *RunError {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == "" {
		kind = fallback
	}
	msg := err.Error()
	var se *ScanError
	if errors.As(err, &se) && se.Err != nil {
		msg = se.Err.Error()
	}
	return &RunError{Kind: kind, Message: msg}
}

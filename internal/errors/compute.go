package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a computation failure so the orchestrator can make an
// explicit, testable skip-or-abort decision instead of guessing from
// generic errors.
type Kind string

const (
	// KindMissingData: a required raw point is absent for a given date.
	// Skip that single (metric, date) output and continue.
	KindMissingData Kind = "missing_data"
	// KindInvalidArithmetic: division by zero or a non-finite result.
	// Skip that output; NaN/Inf is never persisted.
	KindInvalidArithmetic Kind = "invalid_arithmetic"
	// KindAlignmentFailure: empty date intersection or fewer series than a
	// calculator needs. Skip that calculator for the whole run.
	KindAlignmentFailure Kind = "alignment_failure"
	// KindPersistenceFailure: the store write failed. Abort the run; the
	// batched upsert is idempotent, so a wholesale retry is safe.
	KindPersistenceFailure Kind = "persistence_failure"
)

// ComputeError is a classified engine failure.
type ComputeError struct {
	Kind   Kind
	Metric string
	Date   time.Time
	Err    error
	Reason string
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.Metric != "" {
		msg = fmt.Sprintf("%s: metric %s", msg, e.Metric)
	}
	if !e.Date.IsZero() {
		msg = fmt.Sprintf("%s at %s", msg, e.Date.Format("2006-01-02"))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *ComputeError) Unwrap() error { return e.Err }

// MissingData builds a missing-data error for one (metric, date) pair.
func MissingData(metric string, date time.Time, reason string) *ComputeError {
	return &ComputeError{Kind: KindMissingData, Metric: metric, Date: date, Reason: reason}
}

// InvalidArithmetic builds an invalid-arithmetic error for one output.
func InvalidArithmetic(metric string, date time.Time, reason string) *ComputeError {
	return &ComputeError{Kind: KindInvalidArithmetic, Metric: metric, Date: date, Reason: reason}
}

// AlignmentFailure builds a whole-calculator alignment failure.
func AlignmentFailure(calculator, reason string) *ComputeError {
	return &ComputeError{Kind: KindAlignmentFailure, Metric: calculator, Reason: reason}
}

// PersistenceFailure wraps a failed store write.
func PersistenceFailure(err error) *ComputeError {
	return &ComputeError{Kind: KindPersistenceFailure, Reason: "store write failed", Err: err}
}

// KindOf returns the classification of err, or the empty Kind when err is
// not a ComputeError.
func KindOf(err error) Kind {
	var ce *ComputeError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// AbortsRun reports whether err must abort the whole run rather than be
// skipped. Only persistence failures abort; every other classified kind is
// a skip-and-continue decision, and unclassified errors abort defensively.
func AbortsRun(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindMissingData, KindInvalidArithmetic, KindAlignmentFailure:
		return false
	default:
		return true
	}
}

package forecast

import (
	"fmt"
	"sort"
	"strings"
)

// FailureReason classifies a ComputationError.
type FailureReason string

const (
	ReasonNonConvergence   FailureReason = "non-convergence"
	ReasonInsufficientData FailureReason = "insufficient-data"
)

// ComputationError is a per-run failure of one model variant. It never
// escapes the selector as a process-level fault.
type ComputationError struct {
	Reason FailureReason
	Model  string
	Detail string
}

func (e *ComputationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Model, e.Reason, e.Detail)
}

func insufficientData(model string, format string, args ...interface{}) *ComputationError {
	return &ComputationError{Reason: ReasonInsufficientData, Model: model, Detail: fmt.Sprintf(format, args...)}
}

func nonConvergence(model string, format string, args ...interface{}) *ComputationError {
	return &ComputationError{Reason: ReasonNonConvergence, Model: model, Detail: fmt.Sprintf(format, args...)}
}

// NoModelConvergedError is returned by SelectBest when every candidate failed.
type NoModelConvergedError struct {
	Failures map[string]error
}

func (e *NoModelConvergedError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Failures[name].Error())
	}
	return "no model converged: " + strings.Join(parts, "; ")
}

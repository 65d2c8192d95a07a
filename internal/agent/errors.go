package agent

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInput           ErrorKind = "input"
	KindPlanningParse   ErrorKind = "planning_parse"
	KindPlanningProcess ErrorKind = "planning_process"
	KindModel           ErrorKind = "model"
	KindTool            ErrorKind = "tool"
	KindStepBudget      ErrorKind = "step_budget"
	KindStepParse       ErrorKind = "step_parse"
	KindCanceled        ErrorKind = "canceled"
	KindArtifact        ErrorKind = "artifact"
	KindBusy            ErrorKind = "busy"
)

// Error is the result-side error of a plan or step. Kind drives the
// continue/abort decision in the orchestrator.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

type Decision int

const (
	Continue Decision = iota
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// DecisionTable says, per error kind, whether the run substitutes a fallback
// and keeps going or stops.
type DecisionTable map[ErrorKind]Decision

func DefaultDecisions() DecisionTable {
	return DecisionTable{
		KindPlanningParse:   Continue,
		KindPlanningProcess: Continue,
		KindModel:           Continue,
		KindTool:            Continue,
		KindStepBudget:      Continue,
		KindStepParse:       Continue,
		KindCanceled:        Abort,
		KindInput:           Abort,
		KindArtifact:        Abort,
		KindBusy:            Abort,
	}
}

// Decide returns the decision for err. Kinds missing from the table continue.
func (t DecisionTable) Decide(err error) Decision {
	if err == nil {
		return Continue
	}
	if d, ok := t[KindOf(err)]; ok {
		return d
	}
	return Continue
}

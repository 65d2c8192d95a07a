package agent

import (
	"context"
	"sync"
)

// GoalRunner runs a goal end to end. *Orchestrator satisfies it.
type GoalRunner interface {
	Execute(ctx context.Context, goal string) (*Run, error)
}

// RunGate admits one run at a time. Runs share the workspace and the status
// tracker, so every entry point (HTTP review, chat goal) goes through the
// same gate and a second run is refused rather than queued.
type RunGate struct {
	mu sync.Mutex
}

// TryAcquire takes the gate without blocking. release must be called exactly
// once when ok is true.
func (g *RunGate) TryAcquire() (release func(), ok bool) {
	if !g.mu.TryLock() {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(g.mu.Unlock) }, true
}

// Guard wraps runner so each Execute holds the gate for the whole run.
func (g *RunGate) Guard(runner GoalRunner) GoalRunner {
	return &guardedRunner{gate: g, runner: runner}
}

type guardedRunner struct {
	gate   *RunGate
	runner GoalRunner
}

func (r *guardedRunner) Execute(ctx context.Context, goal string) (*Run, error) {
	release, ok := r.gate.TryAcquire()
	if !ok {
		return nil, BusyError()
	}
	defer release()
	return r.runner.Execute(ctx, goal)
}

// BusyError is returned when another run holds the gate.
func BusyError() *Error {
	return newError(KindBusy, "another run is already in progress", nil)
}

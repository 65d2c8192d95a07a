package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhasePlanning  Phase = "PLANNING"
	PhaseExecuting Phase = "EXECUTING"
	PhaseDone      Phase = "DONE"
)

// Status is a point-in-time copy of a run's progress.
type Status struct {
	RunID     string    `json:"run_id,omitempty"`
	Phase     Phase     `json:"phase"`
	Step      int       `json:"step,omitempty"`
	Total     int       `json:"total,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	PlanGraph string    `json:"plan_graph,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker records the phase of the most recent run. It is safe for
// concurrent readers while a run updates it.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

func NewTracker() *Tracker {
	return &Tracker{status: Status{Phase: PhaseIdle, UpdatedAt: time.Now()}}
}

func (t *Tracker) Planning(runID string) {
	t.set(Status{RunID: runID, Phase: PhasePlanning})
}

func (t *Tracker) Executing(runID string, step, total int, taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	graph := t.status.PlanGraph
	t.status = Status{
		RunID:     runID,
		Phase:     PhaseExecuting,
		Step:      step,
		Total:     total,
		TaskID:    taskID,
		PlanGraph: graph,
		UpdatedAt: time.Now(),
	}
}

func (t *Tracker) Done(runID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	graph := t.status.PlanGraph
	t.status = Status{RunID: runID, Phase: PhaseDone, Step: total, Total: total, PlanGraph: graph, UpdatedAt: time.Now()}
}

// SetPlanGraph attaches a rendered plan to the current status.
func (t *Tracker) SetPlanGraph(graph string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.PlanGraph = graph
}

func (t *Tracker) set(s Status) {
	s.UpdatedAt = time.Now()
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

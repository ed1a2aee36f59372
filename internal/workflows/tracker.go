// Package workflows tracks the single long-running client-side
// workflow (dataset upload, deployment submission, config import) so
// the UI can disable conflicting actions while one is in flight. The
// backend owns the server-side lifecycle; this is only the local gate.
package workflows

import (
	"fmt"
	"sync"
)

// ErrWorkflowRunning is returned when starting a second active workflow.
var ErrWorkflowRunning = fmt.Errorf("another workflow is already running")

// ErrNoActiveWorkflow is returned when finishing an idle tracker.
var ErrNoActiveWorkflow = fmt.Errorf("no active workflow")

// Kind labels the workflow being tracked.
type Kind string

const (
	KindDatasetUpload Kind = "dataset_upload"
	KindDeploySubmit  Kind = "deployment_submit"
	KindConfigImport  Kind = "config_import"
)

// Status is the local lifecycle of one workflow.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Workflow stores the current workflow identity and outcome detail.
type Workflow struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Tracker tracks the single allowed active workflow.
type Tracker struct {
	mu      sync.RWMutex
	current Workflow
}

// NewTracker creates a tracker in idle state.
func NewTracker() *Tracker {
	return &Tracker{current: Workflow{Status: StatusIdle}}
}

// Start begins a new workflow, rejecting a second concurrent one.
func (t *Tracker) Start(id string, kind Kind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Status == StatusRunning {
		return ErrWorkflowRunning
	}

	t.current = Workflow{ID: id, Kind: kind, Status: StatusRunning}
	return nil
}

// Finish marks the active workflow done with a result detail.
func (t *Tracker) Finish(detail string) error {
	return t.settle(StatusDone, detail)
}

// Fail marks the active workflow failed with an error detail.
func (t *Tracker) Fail(detail string) error {
	return t.settle(StatusFailed, detail)
}

// Current returns a snapshot of the current workflow.
func (t *Tracker) Current() Workflow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// IsRunning reports whether a workflow is in flight.
func (t *Tracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Status == StatusRunning
}

// settle applies a terminal status to the running workflow.
func (t *Tracker) settle(status Status, detail string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Status != StatusRunning {
		return ErrNoActiveWorkflow
	}

	t.current.Status = status
	t.current.Detail = detail
	return nil
}

package domain

// StartupStage tracks each phase of the application startup sequence.
type StartupStage string

const (
	StartupStageInitializing  StartupStage = "initializing"
	StartupStageBackend       StartupStage = "backend"
	StartupStageDependencies  StartupStage = "dependencies"
	StartupStageConfiguration StartupStage = "configuration"
	StartupStageUI            StartupStage = "ui"
	StartupStageComplete      StartupStage = "complete"
	StartupStageError         StartupStage = "error"
)

// IsTerminal reports whether the stage ends the startup run.
func (s StartupStage) IsTerminal() bool {
	return s == StartupStageComplete || s == StartupStageError
}

// SubstepStatus is the lifecycle state of one startup substep.
type SubstepStatus string

const (
	SubstepPending    SubstepStatus = "pending"
	SubstepInProgress SubstepStatus = "in_progress"
	SubstepCompleted  SubstepStatus = "completed"
	SubstepFailed     SubstepStatus = "failed"
)

// IsFinal reports whether the substep can no longer change state.
func (s SubstepStatus) IsFinal() bool {
	return s == SubstepCompleted || s == SubstepFailed
}

// Substep is one labeled unit of startup work tracked independently
// of the overall progress percentage. Message is only populated when
// the substep reaches a final state.
type Substep struct {
	Name    string        `json:"name"`
	Status  SubstepStatus `json:"status"`
	Message string        `json:"message,omitempty"`
}

// StartupProgress is a snapshot of startup orchestration state
// rendered live by the splash view.
type StartupProgress struct {
	Stage    StartupStage `json:"stage"`
	Percent  int          `json:"percent"`
	Message  string       `json:"message"`
	Substeps []Substep    `json:"substeps"`
}

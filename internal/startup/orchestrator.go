// Package startup sequences the application readiness flow: backend
// health probe, dependency verification, configuration load, and
// interface init. The backend being unreachable degrades the session
// to limited mode instead of blocking it.
package startup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

const (
	defaultHealthAttempts    = 5
	defaultHealthTimeout     = 1500 * time.Millisecond
	defaultHealthRetryDelay  = 800 * time.Millisecond
	defaultDependencyTimeout = 5 * time.Second
	defaultStageDelay        = 450 * time.Millisecond
	defaultGraceDelay        = 350 * time.Millisecond
)

// Fixed substeps shown by the splash view.
const (
	SubstepBackend = iota
	SubstepDependencies
	SubstepConfiguration
	SubstepInterface
	substepCount
)

var substepNames = [substepCount]string{
	"Backend start",
	"Dependency check",
	"Configuration load",
	"Interface init",
}

// ErrAlreadyRunning is returned when Run is called on a run in flight.
var ErrAlreadyRunning = errors.New("startup sequence already running")

// Prober is the backend surface the orchestrator needs during startup.
type Prober interface {
	Health(ctx context.Context) error
	Dependencies(ctx context.Context) (domain.DependencyReport, error)
}

// Readiness is the immutable outcome of a successful startup run. It is
// handed to the shell once and threaded into the views from there; no
// ambient global carries backend availability.
type Readiness struct {
	BackendAvailable bool
	Settings         domain.Settings
	Dependencies     *domain.DependencyReport
}

// Callbacks receive run outcomes. OnComplete and OnError are mutually
// exclusive and each fires at most once per run.
type Callbacks struct {
	OnProgress func(domain.StartupProgress)
	OnComplete func(Readiness)
	OnError    func(reason string)
}

// Options configures an Orchestrator. Probe and LoadSettings are required.
type Options struct {
	Probe        Prober
	LoadSettings func() (domain.Settings, error)
	Callbacks    Callbacks

	HealthAttempts    int
	HealthTimeout     time.Duration
	HealthRetryDelay  time.Duration
	DependencyTimeout time.Duration
	StageDelay        time.Duration
	GraceDelay        time.Duration
}

// Orchestrator drives one startup run at a time. Stages execute strictly
// in order on a single goroutine; observers read snapshots via Progress
// or the OnProgress callback.
type Orchestrator struct {
	probe        Prober
	loadSettings func() (domain.Settings, error)
	cb           Callbacks

	healthAttempts    int
	healthTimeout     time.Duration
	dependencyTimeout time.Duration
	stageDelay        time.Duration
	graceDelay        time.Duration

	// injectable for deterministic tests
	sleep           func(ctx context.Context, d time.Duration) error
	newProbeBackoff func() backoff.BackOff

	mu       sync.Mutex
	running  bool
	progress domain.StartupProgress
}

// New builds an orchestrator with the default probe and stage policy.
func New(opts Options) (*Orchestrator, error) {
	if opts.Probe == nil {
		return nil, fmt.Errorf("probe is required")
	}
	if opts.LoadSettings == nil {
		return nil, fmt.Errorf("settings loader is required")
	}

	o := &Orchestrator{
		probe:             opts.Probe,
		loadSettings:      opts.LoadSettings,
		cb:                opts.Callbacks,
		healthAttempts:    opts.HealthAttempts,
		healthTimeout:     opts.HealthTimeout,
		dependencyTimeout: opts.DependencyTimeout,
		stageDelay:        opts.StageDelay,
		graceDelay:        opts.GraceDelay,
		sleep:             sleepContext,
	}

	if o.healthAttempts <= 0 {
		o.healthAttempts = defaultHealthAttempts
	}
	if o.healthTimeout <= 0 {
		o.healthTimeout = defaultHealthTimeout
	}
	retryDelay := opts.HealthRetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultHealthRetryDelay
	}
	if o.dependencyTimeout <= 0 {
		o.dependencyTimeout = defaultDependencyTimeout
	}
	if o.stageDelay <= 0 {
		o.stageDelay = defaultStageDelay
	}
	if o.graceDelay <= 0 {
		o.graceDelay = defaultGraceDelay
	}

	attempts := o.healthAttempts
	o.newProbeBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), uint64(attempts-1))
	}

	o.progress = freshProgress()
	return o, nil
}

// Run executes the startup sequence once. The outcome is delivered
// through the configured callbacks; the returned error only reports a
// run already in flight. Retry means a fresh Run call, never a resume.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	o.progress = freshProgress()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	readiness, err := o.runStages(ctx)
	if err != nil {
		o.failRun(err.Error())
		if o.cb.OnError != nil {
			o.cb.OnError(err.Error())
		}
		return nil
	}

	if o.cb.OnComplete != nil {
		o.cb.OnComplete(readiness)
	}
	return nil
}

// Running reports whether a startup run is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Progress returns a snapshot of the current startup state.
func (o *Orchestrator) Progress() domain.StartupProgress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyProgress(o.progress)
}

// runStages walks the stage sequence. Network failures in the backend
// and dependency stages are absorbed; every other error (including a
// recovered panic) aborts the run.
func (o *Orchestrator) runStages(ctx context.Context) (readiness Readiness, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("startup sequence panic: %v", p)
		}
	}()

	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageInitializing
		p.Percent = 0
		p.Message = "Starting PEFT Studio"
	})

	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageBackend
		p.Percent = 5
		p.Message = "Connecting to backend service"
	})
	if err := o.beginSubstep(SubstepBackend); err != nil {
		return Readiness{}, err
	}

	available := o.probeHealth(ctx)
	if available {
		if err := o.completeSubstep(SubstepBackend, "Backend reachable"); err != nil {
			return Readiness{}, err
		}
	} else {
		if err := o.failSubstep(SubstepBackend, "Backend unavailable (limited functionality)"); err != nil {
			return Readiness{}, err
		}
	}
	o.update(func(p *domain.StartupProgress) { p.Percent = 25 })

	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageDependencies
		p.Percent = 30
		p.Message = "Verifying dependencies"
	})
	if err := o.beginSubstep(SubstepDependencies); err != nil {
		return Readiness{}, err
	}

	var report *domain.DependencyReport
	if !available {
		if err := o.completeSubstep(SubstepDependencies, "Skipped (backend unavailable)"); err != nil {
			return Readiness{}, err
		}
	} else {
		report = o.verifyDependencies(ctx)
		message := "All dependencies verified"
		switch {
		case report == nil:
			// Non-fatal: the dependency view reports details later.
			message = "Dependency check unavailable; see the Dependencies view"
		case report.HasFailures:
			message = "Some dependencies need attention; see the Dependencies view"
		}
		if err := o.completeSubstep(SubstepDependencies, message); err != nil {
			return Readiness{}, err
		}
	}
	o.update(func(p *domain.StartupProgress) { p.Percent = 50 })

	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageConfiguration
		p.Percent = 55
		p.Message = "Loading configuration"
	})
	if err := o.beginSubstep(SubstepConfiguration); err != nil {
		return Readiness{}, err
	}
	settings, err := o.loadSettings()
	if err != nil {
		return Readiness{}, fmt.Errorf("load configuration: %w", err)
	}
	if err := o.sleep(ctx, o.stageDelay); err != nil {
		return Readiness{}, err
	}
	if err := o.completeSubstep(SubstepConfiguration, "Configuration loaded"); err != nil {
		return Readiness{}, err
	}
	o.update(func(p *domain.StartupProgress) { p.Percent = 75 })

	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageUI
		p.Percent = 80
		p.Message = "Preparing interface"
	})
	if err := o.beginSubstep(SubstepInterface); err != nil {
		return Readiness{}, err
	}
	if err := o.sleep(ctx, o.stageDelay); err != nil {
		return Readiness{}, err
	}
	if err := o.completeSubstep(SubstepInterface, "Interface ready"); err != nil {
		return Readiness{}, err
	}
	o.update(func(p *domain.StartupProgress) { p.Percent = 95 })

	message := "Ready"
	if !available {
		message = "Ready (limited mode)"
	}
	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageComplete
		p.Percent = 100
		p.Message = message
	})

	// Grace delay so the final splash render settles before handoff.
	if err := o.sleep(ctx, o.graceDelay); err != nil {
		return Readiness{}, err
	}

	return Readiness{
		BackendAvailable: available,
		Settings:         settings,
		Dependencies:     report,
	}, nil
}

// probeHealth runs the bounded health probe: sequential attempts, each
// with its own timeout, separated by a constant delay. Reports whether
// the backend answered before the attempts ran out.
func (o *Orchestrator) probeHealth(ctx context.Context) bool {
	attempt := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, o.healthTimeout)
		defer cancel()
		return o.probe.Health(probeCtx)
	}

	err := backoff.Retry(attempt, backoff.WithContext(o.newProbeBackoff(), ctx))
	return err == nil
}

// verifyDependencies makes the single bounded dependency-check request.
// Any failure returns nil; dependency problems never block startup.
func (o *Orchestrator) verifyDependencies(ctx context.Context) *domain.DependencyReport {
	depCtx, cancel := context.WithTimeout(ctx, o.dependencyTimeout)
	defer cancel()

	report, err := o.probe.Dependencies(depCtx)
	if err != nil {
		return nil
	}
	return &report
}

// update applies a mutation under the lock and notifies observers with
// a copy taken outside of it.
func (o *Orchestrator) update(mutate func(*domain.StartupProgress)) {
	o.mu.Lock()
	mutate(&o.progress)
	snapshot := copyProgress(o.progress)
	o.mu.Unlock()

	if o.cb.OnProgress != nil {
		o.cb.OnProgress(snapshot)
	}
}

// beginSubstep moves a pending substep to in_progress. At most one
// substep may be in_progress at a time.
func (o *Orchestrator) beginSubstep(index int) error {
	return o.transitionSubstep(index, domain.SubstepInProgress, "")
}

// completeSubstep finishes an in_progress substep with a result message.
func (o *Orchestrator) completeSubstep(index int, message string) error {
	return o.transitionSubstep(index, domain.SubstepCompleted, message)
}

// failSubstep finishes an in_progress substep with a failure message.
func (o *Orchestrator) failSubstep(index int, message string) error {
	return o.transitionSubstep(index, domain.SubstepFailed, message)
}

// transitionSubstep enforces the closed substep state machine:
// pending -> in_progress -> {completed, failed}, final states sticky,
// messages only on final states.
func (o *Orchestrator) transitionSubstep(index int, status domain.SubstepStatus, message string) error {
	o.mu.Lock()

	if index < 0 || index >= len(o.progress.Substeps) {
		o.mu.Unlock()
		return fmt.Errorf("substep index out of range: %d", index)
	}

	step := &o.progress.Substeps[index]
	valid := false
	switch status {
	case domain.SubstepInProgress:
		valid = step.Status == domain.SubstepPending && !o.anyInProgressLocked()
	case domain.SubstepCompleted, domain.SubstepFailed:
		valid = step.Status == domain.SubstepInProgress
	}
	if !valid {
		from := step.Status
		o.mu.Unlock()
		return fmt.Errorf("invalid substep transition: %s: %s -> %s", step.Name, from, status)
	}

	step.Status = status
	step.Message = message
	snapshot := copyProgress(o.progress)
	o.mu.Unlock()

	if o.cb.OnProgress != nil {
		o.cb.OnProgress(snapshot)
	}
	return nil
}

// failRun records the terminal error state: stage error, percent reset,
// the in-flight substep marked failed with the reason.
func (o *Orchestrator) failRun(reason string) {
	o.update(func(p *domain.StartupProgress) {
		p.Stage = domain.StartupStageError
		p.Percent = 0
		p.Message = reason
		for i := range p.Substeps {
			if p.Substeps[i].Status == domain.SubstepInProgress {
				p.Substeps[i].Status = domain.SubstepFailed
				p.Substeps[i].Message = reason
			}
		}
	})
}

// anyInProgressLocked reports an in-flight substep. Caller holds the lock.
func (o *Orchestrator) anyInProgressLocked() bool {
	for _, step := range o.progress.Substeps {
		if step.Status == domain.SubstepInProgress {
			return true
		}
	}
	return false
}

// freshProgress returns the initial state for a new run.
func freshProgress() domain.StartupProgress {
	substeps := make([]domain.Substep, substepCount)
	for i, name := range substepNames {
		substeps[i] = domain.Substep{Name: name, Status: domain.SubstepPending}
	}

	return domain.StartupProgress{
		Stage:    domain.StartupStageInitializing,
		Percent:  0,
		Message:  "Starting PEFT Studio",
		Substeps: substeps,
	}
}

// copyProgress deep-copies a snapshot so observers never alias live state.
func copyProgress(p domain.StartupProgress) domain.StartupProgress {
	out := p
	out.Substeps = append([]domain.Substep(nil), p.Substeps...)
	return out
}

// sleepContext waits for the duration or the context, whichever ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ankesh-007/peft-studio-sub003/internal/backend"
	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
	"github.com/Ankesh-007/peft-studio-sub003/internal/events"
	"github.com/Ankesh-007/peft-studio-sub003/internal/startup"
	"github.com/Ankesh-007/peft-studio-sub003/internal/workflows"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records the persisted settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.saved = append(s.saved, settings)
	return nil
}

// blockingProbe keeps the health probe in flight until released.
type blockingProbe struct {
	release chan struct{}
}

// Health blocks until the test releases it.
func (p *blockingProbe) Health(ctx context.Context) error {
	<-p.release
	return nil
}

// Dependencies returns an empty report.
func (p *blockingProbe) Dependencies(ctx context.Context) (domain.DependencyReport, error) {
	return domain.DependencyReport{}, nil
}

// TestBackendDependentMethodsGateOnLimitedMode checks the degraded-mode
// guard before startup completes and after a degraded completion.
func TestBackendDependentMethodsGateOnLimitedMode(t *testing.T) {
	app := &App{events: events.NewBus(100)}

	if _, err := app.ListDeployments(); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("ListDeployments error = %v, want %v", err, ErrBackendUnavailable)
	}
	if _, err := app.CreateDeployment("d", "m", "p"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("CreateDeployment error = %v, want %v", err, ErrBackendUnavailable)
	}
	if _, err := app.GetTelemetry("1h"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("GetTelemetry error = %v, want %v", err, ErrBackendUnavailable)
	}
	if _, err := app.RefreshDependencies(); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("RefreshDependencies error = %v, want %v", err, ErrBackendUnavailable)
	}
	if _, err := app.CheckForUpdates(); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("CheckForUpdates error = %v, want %v", err, ErrBackendUnavailable)
	}

	app.onStartupComplete(startup.Readiness{BackendAvailable: false})
	if app.BackendAvailable() {
		t.Fatal("expected limited mode after degraded startup")
	}
	if _, err := app.ListDeployments(); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("ListDeployments error = %v, want gate to hold in limited mode", err)
	}
}

// TestStartupCompleteStoresReadiness checks the one-shot availability flag
// and the cached dependency report.
func TestStartupCompleteStoresReadiness(t *testing.T) {
	app := &App{events: events.NewBus(100)}
	report := domain.DependencyReport{
		Items: []domain.DependencyItem{{ID: "cuda", Status: domain.DependencyStatusPass}},
	}

	app.onStartupComplete(startup.Readiness{
		BackendAvailable: true,
		Settings:         domain.Settings{BackendURL: "http://localhost:8000"},
		Dependencies:     &report,
	})

	if !app.BackendAvailable() {
		t.Fatal("expected backend available")
	}
	got := app.GetDependencies()
	if len(got.Items) != 1 || got.Items[0].ID != "cuda" {
		t.Fatalf("dependencies = %+v, want cached report", got)
	}

	published := app.Events(0)
	if len(published) != 1 || published[0].Type != events.TypeStartupComplete {
		t.Fatalf("events = %+v, want one startup_complete", published)
	}
}

// TestStartupProgressFeedsEventBus checks snapshot relay into the feed.
func TestStartupProgressFeedsEventBus(t *testing.T) {
	app := &App{events: events.NewBus(100)}

	app.onStartupProgress(domain.StartupProgress{
		Stage:   domain.StartupStageBackend,
		Percent: 5,
		Message: "Connecting to backend service",
	})
	app.onStartupError("settings corrupted")

	published := app.Events(0)
	if len(published) != 2 {
		t.Fatalf("events = %d, want 2", len(published))
	}
	if published[0].Type != events.TypeStartupProgress || published[0].Startup == nil {
		t.Fatalf("first event = %+v, want startup_progress with snapshot", published[0])
	}
	if published[0].Startup.Percent != 5 {
		t.Fatalf("snapshot percent = %d, want 5", published[0].Startup.Percent)
	}
	if published[1].Type != events.TypeStartupError || published[1].Message != "settings corrupted" {
		t.Fatalf("second event = %+v, want startup_error", published[1])
	}
}

// TestRetryStartupRejectsRunInFlight checks the retry guard.
func TestRetryStartupRejectsRunInFlight(t *testing.T) {
	probe := &blockingProbe{release: make(chan struct{})}
	orchestrator, err := startup.New(startup.Options{
		Probe:        probe,
		LoadSettings: func() (domain.Settings, error) { return domain.Settings{}, nil },
		GraceDelay:   time.Millisecond,
		StageDelay:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("startup.New: %v", err)
	}

	app := &App{Startup: orchestrator, events: events.NewBus(100)}
	if err := app.RetryStartup(); err != nil {
		t.Fatalf("first RetryStartup: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for !orchestrator.Running() {
		select {
		case <-deadline:
			t.Fatal("startup never started running")
		case <-time.After(time.Millisecond):
		}
	}

	if err := app.RetryStartup(); !errors.Is(err, startup.ErrAlreadyRunning) {
		t.Fatalf("second RetryStartup error = %v, want %v", err, startup.ErrAlreadyRunning)
	}
	close(probe.release)
}

// TestCreateDeploymentValidatesModelAndTracksWorkflow covers the full
// submission path: catalog validation, workflow tracking, and the
// backend call.
func TestCreateDeploymentValidatesModelAndTracksWorkflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.Deployment{ID: "dep-1", Name: "demo", Status: domain.DeploymentStatusCreating})
	}))
	defer srv.Close()

	client, err := backend.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("backend.NewClient: %v", err)
	}

	app := &App{
		Backend:   client,
		Workflows: workflows.NewTracker(),
		events:    events.NewBus(100),
	}
	app.onStartupComplete(startup.Readiness{BackendAvailable: true})

	if _, err := app.CreateDeployment("demo", "gpt-5", "modal"); err == nil {
		t.Fatal("expected error for unknown model id")
	}

	deployment, err := app.CreateDeployment("demo", "llama-3.1-8b", "modal")
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}
	if deployment.ID != "dep-1" {
		t.Fatalf("deployment = %+v, want dep-1", deployment)
	}

	current := app.CurrentWorkflow()
	if current.Kind != workflows.KindDeploySubmit || current.Status != workflows.StatusDone {
		t.Fatalf("workflow = %+v, want settled deployment_submit", current)
	}
}

// TestSaveSettingsNormalizesInput checks trimming and default restoration.
func TestSaveSettingsNormalizesInput(t *testing.T) {
	store := &fakeStore{}
	app := &App{Store: store, events: events.NewBus(100)}

	saved, err := app.SaveSettings(domain.Settings{
		BackendURL:           "  http://localhost:9100  ",
		WorkspaceDir:         " /work ",
		UpdateChannel:        "",
		TelemetryPollSeconds: -5,
	})
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	if saved.BackendURL != "http://localhost:9100" {
		t.Fatalf("backend url = %q", saved.BackendURL)
	}
	if saved.WorkspaceDir != "/work" {
		t.Fatalf("workspace dir = %q", saved.WorkspaceDir)
	}
	if saved.UpdateChannel != "stable" {
		t.Fatalf("update channel = %q, want stable", saved.UpdateChannel)
	}
	if saved.TelemetryPollSeconds <= 0 {
		t.Fatalf("telemetry poll = %d, want positive default", saved.TelemetryPollSeconds)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d times, want 1", len(store.saved))
	}
}

// TestSaveSettingsRestoresEmptyBackendURL checks the empty-URL default.
func TestSaveSettingsRestoresEmptyBackendURL(t *testing.T) {
	store := &fakeStore{}
	app := &App{Store: store, events: events.NewBus(100)}

	saved, err := app.SaveSettings(domain.Settings{})
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if saved.BackendURL != "http://localhost:8000" {
		t.Fatalf("backend url = %q, want default", saved.BackendURL)
	}
}

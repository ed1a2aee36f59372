package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/Ankesh-007/peft-studio-sub003/internal/backend"
	"github.com/Ankesh-007/peft-studio-sub003/internal/config"
	"github.com/Ankesh-007/peft-studio-sub003/internal/diagnostics"
	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
	"github.com/Ankesh-007/peft-studio-sub003/internal/events"
	"github.com/Ankesh-007/peft-studio-sub003/internal/startup"
	"github.com/Ankesh-007/peft-studio-sub003/internal/update"
	"github.com/Ankesh-007/peft-studio-sub003/internal/workflows"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrBackendUnavailable is returned by backend-dependent methods while
// the session runs in limited mode.
var ErrBackendUnavailable = errors.New("backend unavailable (limited mode)")

const (
	requestTimeout = 10 * time.Second
	uploadTimeout  = 5 * time.Minute
)

var datasetDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Dataset files",
		Pattern:     "*.jsonl;*.json;*.csv;*.tsv;*.parquet;*.txt",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var configDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Training configurations",
		Pattern:     "*.json",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the backend client, startup orchestration,
// and UI runtime callbacks.
type App struct {
	Settings  domain.Settings
	Store     config.Store
	Backend   *backend.Client
	Startup   *startup.Orchestrator
	Updates   *update.Checker
	Workflows *workflows.Tracker

	assets    fs.FS
	events    *events.Bus
	preflight *diagnostics.Checker

	mu         sync.Mutex
	readiness  *startup.Readiness
	runtimeCtx context.Context
}

// New builds the application with persisted settings.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".peft-studio", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	client, err := backend.NewClient(settings.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	a := &App{
		Settings:  settings,
		Store:     store,
		Backend:   client,
		Updates:   update.NewChecker(client, Version),
		Workflows: workflows.NewTracker(),
		assets:    assets,
		events:    events.NewBus(1000),
		preflight: diagnostics.NewChecker(),
	}

	orchestrator, err := startup.New(startup.Options{
		Probe:        client,
		LoadSettings: store.Load,
		Callbacks: startup.Callbacks{
			OnProgress: a.onStartupProgress,
			OnComplete: a.onStartupComplete,
			OnError:    a.onStartupError,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create startup orchestrator: %w", err)
	}
	a.Startup = orchestrator

	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "PEFT Studio",
		Width:       1280,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.StartupHook,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// StartupHook stores the Wails runtime context and launches the
// readiness sequence in the background so the splash renders live.
func (a *App) StartupHook(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	go func() {
		_ = a.Startup.Run(context.Background())
	}()
}

// GetStartupProgress returns the current startup snapshot for polling views.
func (a *App) GetStartupProgress() domain.StartupProgress {
	return a.Startup.Progress()
}

// RetryStartup restarts the whole readiness sequence after a terminal
// error. There is no partial resume.
func (a *App) RetryStartup() error {
	if a.Startup.Running() {
		return startup.ErrAlreadyRunning
	}

	a.mu.Lock()
	a.readiness = nil
	a.mu.Unlock()

	go func() {
		_ = a.Startup.Run(context.Background())
	}()
	return nil
}

// BackendAvailable reports whether the session left startup with a
// reachable backend. Views use it to gate actions and show the
// limited-mode banner.
func (a *App) BackendAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readiness != nil && a.readiness.BackendAvailable
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []events.Event {
	return a.events.Since(sinceSeq)
}

// GetDependencies returns the dependency report captured during startup,
// or an empty report when none was collected.
func (a *App) GetDependencies() domain.DependencyReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readiness == nil || a.readiness.Dependencies == nil {
		return domain.DependencyReport{}
	}
	return *a.readiness.Dependencies
}

// RefreshDependencies reruns the backend dependency check on demand.
func (a *App) RefreshDependencies() (domain.DependencyReport, error) {
	if err := a.requireBackend(); err != nil {
		return domain.DependencyReport{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	report, err := a.Backend.Dependencies(ctx)
	if err != nil {
		return domain.DependencyReport{}, fmt.Errorf("refresh dependencies: %w", err)
	}

	a.mu.Lock()
	if a.readiness != nil {
		a.readiness.Dependencies = &report
	}
	a.mu.Unlock()

	return report, nil
}

// ListDeployments returns the backend's deployment dashboard data.
func (a *App) ListDeployments() ([]domain.Deployment, error) {
	if err := a.requireBackend(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return a.Backend.ListDeployments(ctx)
}

// CreateDeployment submits a new deployment and publishes a workflow event.
func (a *App) CreateDeployment(name, modelID, platform string) (domain.Deployment, error) {
	if err := a.requireBackend(); err != nil {
		return domain.Deployment{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Deployment{}, fmt.Errorf("deployment name is empty")
	}
	if err := validateBaseModelID(modelID); err != nil {
		return domain.Deployment{}, err
	}

	requestID := uuid.NewString()
	if err := a.Workflows.Start(requestID, workflows.KindDeploySubmit); err != nil {
		return domain.Deployment{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	deployment, err := a.Backend.CreateDeployment(ctx, domain.DeploymentRequest{
		RequestID: requestID,
		Name:      name,
		ModelID:   strings.TrimSpace(modelID),
		Platform:  strings.TrimSpace(platform),
	})
	if err != nil {
		_ = a.Workflows.Fail(err.Error())
		return domain.Deployment{}, fmt.Errorf("create deployment: %w", err)
	}
	_ = a.Workflows.Finish(fmt.Sprintf("deployment %s submitted", deployment.ID))

	a.publishEvent(events.Event{
		Type:     events.TypeWorkflow,
		Workflow: "deployment",
		Message:  fmt.Sprintf("Deployment %q submitted", deployment.Name),
	})
	return deployment, nil
}

// GetTelemetry fetches one telemetry window for the analytics view.
func (a *App) GetTelemetry(window string) (domain.TelemetrySnapshot, error) {
	if err := a.requireBackend(); err != nil {
		return domain.TelemetrySnapshot{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return a.Backend.Telemetry(ctx, window)
}

// GetLocalDiagnostics runs local environment checks against the
// current settings. Complements the backend dependency report.
func (a *App) GetLocalDiagnostics() domain.DependencyReport {
	a.mu.Lock()
	settings := a.Settings
	a.mu.Unlock()
	return a.preflight.Run(settings)
}

// CurrentWorkflow returns the in-flight or last settled client workflow.
func (a *App) CurrentWorkflow() workflows.Workflow {
	return a.Workflows.Current()
}

// PickDatasetFile opens a native file dialog for dataset selection.
func (a *App) PickDatasetFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select dataset file",
		Filters: datasetDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// UploadDataset streams the selected dataset file to the backend.
func (a *App) UploadDataset(path string) (domain.DatasetInfo, error) {
	if err := a.requireBackend(); err != nil {
		return domain.DatasetInfo{}, err
	}
	if err := a.preflight.CheckDatasetFile(path); err != nil {
		return domain.DatasetInfo{}, err
	}

	uploadID := uuid.NewString()
	if err := a.Workflows.Start(uploadID, workflows.KindDatasetUpload); err != nil {
		return domain.DatasetInfo{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	info, err := a.Backend.UploadDataset(ctx, uploadID, path)
	if err != nil {
		_ = a.Workflows.Fail(err.Error())
		return domain.DatasetInfo{}, fmt.Errorf("upload dataset: %w", err)
	}
	_ = a.Workflows.Finish(fmt.Sprintf("dataset %s uploaded", info.ID))

	a.publishEvent(events.Event{
		Type:     events.TypeWorkflow,
		Workflow: "dataset",
		Message:  fmt.Sprintf("Dataset %q uploaded (%d rows)", info.Name, info.RowCount),
	})
	return info, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings. A changed backend URL
// takes effect on the next launch.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	a.mu.Unlock()

	return normalized, nil
}

// ImportConfigFile picks a local training configuration and forwards it
// to the backend.
func (a *App) ImportConfigFile() error {
	if err := a.requireBackend(); err != nil {
		return err
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Import training configuration",
		Filters: configDialogFilter,
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("configuration is not valid JSON: %s", filepath.Base(path))
	}

	if err := a.Workflows.Start(uuid.NewString(), workflows.KindConfigImport); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := a.Backend.ImportConfig(reqCtx, json.RawMessage(data)); err != nil {
		_ = a.Workflows.Fail(err.Error())
		return fmt.Errorf("import configuration: %w", err)
	}
	_ = a.Workflows.Finish(fmt.Sprintf("configuration %s imported", filepath.Base(path)))

	a.publishEvent(events.Event{
		Type:     events.TypeWorkflow,
		Workflow: "config",
		Message:  fmt.Sprintf("Configuration %q imported", filepath.Base(path)),
	})
	return nil
}

// ExportConfigFile fetches the backend's training configuration and
// saves it to a user-chosen local file.
func (a *App) ExportConfigFile() (string, error) {
	if err := a.requireBackend(); err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	raw, err := a.Backend.ExportConfig(reqCtx)
	if err != nil {
		return "", fmt.Errorf("export configuration: %w", err)
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:           "Export training configuration",
		DefaultFilename: "training-config.json",
		Filters:         configDialogFilter,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write configuration: %w", err)
	}
	return path, nil
}

// CheckForUpdates compares the running version against the newest
// release on the configured channel.
func (a *App) CheckForUpdates() (domain.UpdateInfo, error) {
	if err := a.requireBackend(); err != nil {
		return domain.UpdateInfo{}, err
	}

	a.mu.Lock()
	channel := a.Settings.UpdateChannel
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return a.Updates.Check(ctx, channel)
}

// onStartupProgress relays orchestrator snapshots to the event feed
// and the frontend runtime.
func (a *App) onStartupProgress(progress domain.StartupProgress) {
	snapshot := progress
	a.publishEvent(events.Event{
		Type:    events.TypeStartupProgress,
		Message: progress.Message,
		Startup: &snapshot,
	})
}

// onStartupComplete stores the immutable readiness outcome for the session.
func (a *App) onStartupComplete(readiness startup.Readiness) {
	a.mu.Lock()
	a.readiness = &readiness
	a.Settings = readiness.Settings
	a.mu.Unlock()

	message := "Startup complete"
	if !readiness.BackendAvailable {
		message = "Startup complete (limited mode)"
	}
	a.publishEvent(events.Event{
		Type:    events.TypeStartupComplete,
		Message: message,
	})
	a.emitRuntime("startup:complete", readiness.BackendAvailable)
}

// onStartupError surfaces an unrecoverable startup failure to the shell.
func (a *App) onStartupError(reason string) {
	a.publishEvent(events.Event{
		Type:    events.TypeStartupError,
		Message: reason,
	})
	a.emitRuntime("startup:error", reason)
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event events.Event) {
	published := a.events.Publish(event)
	a.emitRuntime("app:event", published)
}

// emitRuntime pushes a payload to the frontend when the runtime is up.
func (a *App) emitRuntime(name string, payload interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, name, payload)
	}
}

// requireBackend gates backend-dependent actions in limited mode.
func (a *App) requireBackend() error {
	if !a.BackendAvailable() {
		return ErrBackendUnavailable
	}
	return nil
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and restores defaults for
// empty or out-of-range fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.BackendURL = strings.TrimSpace(settings.BackendURL)
	settings.WorkspaceDir = strings.TrimSpace(settings.WorkspaceDir)
	settings.UpdateChannel = strings.TrimSpace(settings.UpdateChannel)
	if settings.BackendURL == "" {
		settings.BackendURL = config.DefaultSettings().BackendURL
	}
	if settings.UpdateChannel == "" {
		settings.UpdateChannel = "stable"
	}
	if settings.TelemetryPollSeconds <= 0 {
		settings.TelemetryPollSeconds = config.DefaultSettings().TelemetryPollSeconds
	}
	return settings
}

package domain

// Settings contains user-selectable runtime configuration.
type Settings struct {
	BackendURL           string `json:"backendUrl"`
	WorkspaceDir         string `json:"workspaceDir"`
	UpdateChannel        string `json:"updateChannel"`
	TelemetryPollSeconds int    `json:"telemetryPollSeconds"`
}

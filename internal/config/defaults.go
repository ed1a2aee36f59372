package config

import (
	"os"
	"path/filepath"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		BackendURL:           "http://localhost:8000",
		WorkspaceDir:         filepath.Join(homeDir, ".peft-studio", "workspace"),
		UpdateChannel:        "stable",
		TelemetryPollSeconds: 30,
	}
}

package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

// EnvBackendURL overrides the persisted backend base URL when set.
// Values are loaded from the environment or a .env file next to the
// binary (godotenv autoload in main).
const EnvBackendURL = "PEFT_STUDIO_BACKEND_URL"

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
// The backend URL environment override applies in both cases.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnvOverrides(DefaultSettings()), nil
		}

		return domain.Settings{}, err
	}

	var cfg domain.Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	return applyEnvOverrides(cfg), nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// applyEnvOverrides layers environment configuration over stored settings.
func applyEnvOverrides(cfg domain.Settings) domain.Settings {
	if url := os.Getenv(EnvBackendURL); url != "" {
		cfg.BackendURL = url
	}
	return cfg
}

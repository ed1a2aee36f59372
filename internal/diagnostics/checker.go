// Package diagnostics runs local environment checks: the workspace
// directory and candidate dataset files. Backend-side dependency
// verification is separate and reported by the backend itself.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

// datasetExtensions are the file types accepted for upload.
var datasetExtensions = map[string]bool{
	".jsonl":   true,
	".json":    true,
	".csv":     true,
	".tsv":     true,
	".parquet": true,
	".txt":     true,
}

// Checker validates local filesystem prerequisites.
type Checker struct {
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all local checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DependencyReport {
	items := []domain.DependencyItem{
		c.checkWorkspaceDir(settings.WorkspaceDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DependencyStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DependencyReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// CheckDatasetFile validates a dataset path before upload: it must
// exist, be a regular non-empty file, and carry a supported extension.
func (c *Checker) CheckDatasetFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("dataset path is empty")
	}

	info, err := c.stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("dataset does not exist: %s", path)
		}
		return fmt.Errorf("cannot access dataset: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("dataset path is a directory: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("dataset is empty: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !datasetExtensions[ext] {
		return fmt.Errorf("unsupported dataset format %q (expected jsonl, json, csv, tsv, parquet, or txt)", ext)
	}
	return nil
}

// checkWorkspaceDir validates workspace existence and write access.
func (c *Checker) checkWorkspaceDir(workspaceDir string) domain.DependencyItem {
	item := domain.DependencyItem{
		ID:       "workspace_dir",
		Name:     "Workspace directory",
		Required: true,
	}

	if strings.TrimSpace(workspaceDir) == "" {
		item.Status = domain.DependencyStatusFail
		item.Message = "Workspace directory is empty."
		item.Hint = "Set a workspace directory where datasets and exports can be staged."
		return item
	}

	if err := c.mkdirAll(workspaceDir, 0o755); err != nil {
		item.Status = domain.DependencyStatusFail
		item.Message = fmt.Sprintf("Cannot create workspace directory: %s", workspaceDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(workspaceDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DependencyStatusFail
		item.Message = fmt.Sprintf("Workspace directory is not writable: %s", workspaceDir)
		item.Hint = "Choose a writable directory for dataset staging."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DependencyStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", workspaceDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

package domain

import (
	"encoding/json"
	"time"
)

// DeploymentStatus reflects the backend-reported lifecycle of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusCreating DeploymentStatus = "creating"
	DeploymentStatusRunning  DeploymentStatus = "running"
	DeploymentStatusStopped  DeploymentStatus = "stopped"
	DeploymentStatusFailed   DeploymentStatus = "failed"
)

// Deployment is a backend-owned deployment record. Detail carries the
// platform-specific payload verbatim for the dashboard view.
type Deployment struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Platform  string           `json:"platform"`
	Status    DeploymentStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	Detail    json.RawMessage  `json:"detail,omitempty"`
}

// DeploymentRequest describes a new deployment to create.
type DeploymentRequest struct {
	RequestID string `json:"requestId"`
	Name      string `json:"name"`
	ModelID   string `json:"modelId"`
	Platform  string `json:"platform"`
}

// TelemetrySnapshot is one window of backend telemetry. Metrics stays
// opaque JSON; the analytics view charts it without interpretation here.
type TelemetrySnapshot struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Window      string          `json:"window"`
	Metrics     json.RawMessage `json:"metrics"`
}

// DatasetInfo is the backend's record of an uploaded dataset.
type DatasetInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	RowCount   int64     `json:"rowCount"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// BaseModelOption describes one base model offered for fine-tuning.
type BaseModelOption struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Family        string `json:"family"`
	ParamsLabel   string `json:"paramsLabel"`
	ContextLength int    `json:"contextLength"`
	Description   string `json:"description"`
	Recommended   bool   `json:"recommended,omitempty"`
}

// UpdateInfo summarizes an update-notification check.
type UpdateInfo struct {
	CurrentVersion  string `json:"currentVersion"`
	LatestVersion   string `json:"latestVersion"`
	UpdateAvailable bool   `json:"updateAvailable"`
	Channel         string `json:"channel"`
	Notes           string `json:"notes,omitempty"`
}

package domain

import "time"

// DependencyStatus indicates whether a single backend dependency check passed.
type DependencyStatus string

const (
	DependencyStatusPass DependencyStatus = "pass"
	DependencyStatusWarn DependencyStatus = "warn"
	DependencyStatusFail DependencyStatus = "fail"
)

// DependencyItem is one dependency check result with optional remediation hint.
type DependencyItem struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Status   DependencyStatus `json:"status"`
	Required bool             `json:"required"`
	Message  string           `json:"message"`
	Hint     string           `json:"hint,omitempty"`
}

// DependencyReport aggregates backend dependency checks for the
// dependency view and for startup verification.
type DependencyReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DependencyItem `json:"items"`
}

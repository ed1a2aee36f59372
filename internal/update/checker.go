// Package update compares the running app version against the newest
// release published for the configured channel.
package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

// VersionSource provides the latest published version for a channel.
type VersionSource interface {
	LatestVersion(ctx context.Context, channel string) (version, notes string, err error)
}

// Checker performs update-notification checks.
type Checker struct {
	source  VersionSource
	current string
}

// NewChecker creates a checker for the given running version.
func NewChecker(source VersionSource, current string) *Checker {
	return &Checker{source: source, current: current}
}

// Check fetches the latest version on the channel and reports whether
// it is newer than the running version.
func (c *Checker) Check(ctx context.Context, channel string) (domain.UpdateInfo, error) {
	info := domain.UpdateInfo{
		CurrentVersion: c.current,
		Channel:        channel,
	}

	latest, notes, err := c.source.LatestVersion(ctx, channel)
	if err != nil {
		return domain.UpdateInfo{}, fmt.Errorf("fetch latest version: %w", err)
	}
	info.LatestVersion = latest
	info.Notes = notes

	currentVer, err := semver.NewVersion(strings.TrimPrefix(c.current, "v"))
	if err != nil {
		return domain.UpdateInfo{}, fmt.Errorf("parse current version %q: %w", c.current, err)
	}
	latestVer, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return domain.UpdateInfo{}, fmt.Errorf("parse latest version %q: %w", latest, err)
	}

	info.UpdateAvailable = latestVer.GreaterThan(currentVer)
	return info, nil
}

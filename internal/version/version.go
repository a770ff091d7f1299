package version

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-resty/resty/v2"
)

var (
	// Version is the current version of the CLI
	// This will be overridden by ldflags during build
	Version = "dev"

	// These variables are set by goreleaser
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"

	// ReleaseURL answers with the latest GitHub release
	ReleaseURL = "https://api.github.com/repos/kubiyabot/storyboard/releases/latest"

	lastCheck     time.Time
	latestVersion string
	checkMutex    sync.Mutex
	checkInterval = 24 * time.Hour
)

// SetBuildInfo sets the build information
func SetBuildInfo(commitHash, buildDate, builder string) {
	commit = commitHash
	date = buildDate
	builtBy = builder
}

type githubRelease struct {
	TagName string `json:"tag_name"`
}

// GetVersion returns the full version string
func GetVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, by: %s)",
		Version, commit, date, builtBy)
}

// CheckForUpdate returns the latest released version and whether it is newer
// than Version. Results are cached for a day.
func CheckForUpdate(ctx context.Context) (string, bool, error) {
	checkMutex.Lock()
	defer checkMutex.Unlock()

	if time.Since(lastCheck) < checkInterval && latestVersion != "" {
		newer, err := compareVersions(Version, latestVersion)
		return latestVersion, newer, err
	}

	var release githubRelease
	resp, err := resty.New().
		SetTimeout(5*time.Second).
		R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.github+json").
		SetResult(&release).
		Get(ReleaseURL)
	if err != nil {
		return "", false, err
	}
	if resp.IsError() {
		return "", false, fmt.Errorf("GitHub API returned status %d", resp.StatusCode())
	}

	lastCheck = time.Now()
	latestVersion = release.TagName

	newer, err := compareVersions(Version, latestVersion)
	return latestVersion, newer, err
}

// compareVersions reports whether latest is a newer semantic version than
// current. Development builds never update.
func compareVersions(current, latest string) (bool, error) {
	if current == "dev" || current == "" {
		return false, nil
	}
	cur, err := semver.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return false, fmt.Errorf("parse current version %q: %w", current, err)
	}
	lat, err := semver.NewVersion(strings.TrimSpace(latest))
	if err != nil {
		return false, fmt.Errorf("parse latest version %q: %w", latest, err)
	}
	return lat.GreaterThan(cur), nil
}

// GetUpdateMessage returns a formatted message about available updates
func GetUpdateMessage(ctx context.Context) string {
	if Version == "dev" {
		return ""
	}
	latest, hasUpdate, err := CheckForUpdate(ctx)
	if err != nil || !hasUpdate {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\nUpdate available!\n")
	sb.WriteString(fmt.Sprintf("Current version: %s\n", Version))
	sb.WriteString(fmt.Sprintf("Latest version:  %s\n", latest))
	return sb.String()
}

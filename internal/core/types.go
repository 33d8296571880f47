// Package core implements the version-change detection pipeline: per-package
// checks against the registry, change classification, and release enrichment.
package core

import (
	"time"

	"github.com/git-pkgs/watch/internal/version"
)

// Change is the emitted record for one detected version transition.
type Change struct {
	Package     string             `json:"package"`
	FromVersion string             `json:"fromVersion"`
	ToVersion   string             `json:"toVersion"`
	Tag         string             `json:"tag"`
	Kind        version.ChangeKind `json:"changeKind"`

	// PublishedAt is the registry publish timestamp for ToVersion,
	// empty if the registry did not record one.
	PublishedAt string `json:"publishedAt,omitempty"`

	// DetectedAt is when this change was observed by the watcher.
	DetectedAt time.Time `json:"detectedAt"`

	// Enrichment fields, absent unless enrichment was requested and the
	// corresponding lookup succeeded.
	RegistryURL   string `json:"registryUrl,omitempty"`
	RepositoryURL string `json:"repositoryUrl,omitempty"`
	ChangelogURL  string `json:"changelogUrl,omitempty"`
	ReleaseTitle  string `json:"releaseTitle,omitempty"`
	ReleaseNotes  string `json:"releaseNotes,omitempty"`
}

// InstallCommand returns the npm install command for the new version.
func (c *Change) InstallCommand() string {
	return "npm install " + c.Package + "@" + c.ToVersion
}

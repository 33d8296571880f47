package core

import (
	"context"
	"strings"
	"time"

	"github.com/git-pkgs/watch/internal/npm"
	"github.com/git-pkgs/watch/internal/repourl"
	"github.com/git-pkgs/watch/internal/version"
)

// buildChange composes the change record for one transition. Classification
// and the registry web URL are always populated; enrichment is best-effort
// and a failed lookup degrades to the record without release details.
func (c *Checker) buildChange(ctx context.Context, pkg, from, to, tag string, meta *npm.Metadata, enrich bool) *Change {
	change := &Change{
		Package:     pkg,
		FromVersion: from,
		ToVersion:   to,
		Tag:         tag,
		Kind:        version.Classify(from, to),
		PublishedAt: meta.PublishedAt(to),
		DetectedAt:  time.Now().UTC(),
		RegistryURL: npm.PackageURL(pkg, to),
	}

	if !enrich {
		return change
	}

	repoURL := repourl.FromMetadata(meta.Repository)
	if repoURL == "" {
		c.log.Debugf("[watch] %s: no repository reference in registry metadata", pkg)
		return change
	}
	change.RepositoryURL = repoURL

	if !strings.Contains(repoURL, "github.com") {
		return change
	}

	if rel, ok := c.resolver.ResolveRelease(ctx, repoURL, to); ok {
		change.ChangelogURL = rel.HTMLURL
		change.ReleaseTitle = rel.Name
		change.ReleaseNotes = rel.Body
		return change
	}

	// No candidate tag matched a real release. Fall back to the
	// conventional v-prefixed release page; best-effort, not verified.
	c.log.Debugf("[watch] %s: no release found for %s, using generic changelog URL", pkg, to)
	tagName := to
	if !strings.HasPrefix(tagName, "v") {
		tagName = "v" + tagName
	}
	change.ChangelogURL = repoURL + "/releases/tag/" + tagName
	return change
}

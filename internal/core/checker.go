package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/watch/internal/github"
	"github.com/git-pkgs/watch/internal/npm"
	"github.com/git-pkgs/watch/internal/version"
	"github.com/git-pkgs/watch/store"
)

// DefaultTag is the dist-tag watched when none is configured.
const DefaultTag = "latest"

// debugBaseline is the synthetic prior used in debug mode when the current
// version has fewer than three components.
const debugBaseline = "0.0.0"

// CheckOptions control one package check.
type CheckOptions struct {
	// Tag is the dist-tag to watch; DefaultTag if empty.
	Tag string

	// IncludePrerelease lets hyphenated versions through the filter.
	IncludePrerelease bool

	// SkipInitial suppresses the notification for the first observation
	// of a package; the store is still initialized.
	SkipInitial bool

	// DebugMode simulates a change by synthesizing a prior version one
	// patch level below the current one. The store is never written in
	// this mode, so repeated runs keep re-simulating.
	DebugMode bool

	// Enrich requests GitHub release enrichment for detected changes.
	Enrich bool
}

// Checker runs the per-package check state machine.
type Checker struct {
	registry *npm.Registry
	resolver *github.Resolver
	store    store.Store
	log      logrus.FieldLogger
}

// NewChecker wires a checker from its collaborators. A nil logger falls
// back to the logrus standard logger.
func NewChecker(registry *npm.Registry, resolver *github.Resolver, st store.Store, log logrus.FieldLogger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{
		registry: registry,
		resolver: resolver,
		store:    st,
		log:      log,
	}
}

// Check fetches registry metadata for one package and decides whether its
// watched dist-tag moved since the last observation. It returns nil when
// there is nothing to report: missing tag, filtered prerelease, first
// observation with SkipInitial, or no change. Registry fetch and store
// errors propagate to the caller, which owns per-package error isolation.
func (c *Checker) Check(ctx context.Context, pkg string, opts CheckOptions) (*Change, error) {
	meta, err := c.registry.FetchMetadata(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", pkg, err)
	}

	tag := opts.Tag
	if tag == "" {
		tag = DefaultTag
	}

	current, ok := meta.VersionFor(tag)
	if !ok {
		c.log.Debugf("[watch] %s: dist-tag %q not found", pkg, tag)
		return nil, nil
	}

	if strings.Contains(current, "-") && !opts.IncludePrerelease {
		c.log.Debugf("[watch] %s: %s filtered as prerelease", pkg, current)
		return nil, nil
	}

	key := storeKey(pkg, tag)
	prior, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading last-seen version for %s: %w", pkg, err)
	}

	if opts.DebugMode && !found {
		fake := decrementPatch(current)
		c.log.Debugf("[watch] %s: debug mode, simulating change %s -> %s", pkg, fake, current)
		return c.buildChange(ctx, pkg, fake, current, tag, meta, opts.Enrich), nil
	}

	if !found {
		if err := c.store.Set(ctx, key, current); err != nil {
			return nil, fmt.Errorf("initializing last-seen version for %s: %w", pkg, err)
		}
		if opts.SkipInitial {
			c.log.Infof("[watch] %s: initialized at %s, notification suppressed", pkg, current)
			return nil, nil
		}
		return c.buildChange(ctx, pkg, version.NoPrior, current, tag, meta, opts.Enrich), nil
	}

	if prior == current {
		return nil, nil
	}

	if err := c.store.Set(ctx, key, current); err != nil {
		return nil, fmt.Errorf("updating last-seen version for %s: %w", pkg, err)
	}
	return c.buildChange(ctx, pkg, prior, current, tag, meta, opts.Enrich), nil
}

// storeKey namespaces store entries per (package, tag) configuration.
func storeKey(pkg, tag string) string {
	return pkg + "@" + tag
}

// decrementPatch synthesizes a version one patch level below v, floored at
// zero. Versions with fewer than three dot-separated components fall back
// to the fixed baseline.
func decrementPatch(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) < 3 {
		return debugBaseline
	}

	patch, err := strconv.Atoi(parts[2])
	if err != nil || patch < 1 {
		patch = 1
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch-1)
}

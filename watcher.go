package watch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/watch/client"
	"github.com/git-pkgs/watch/internal/core"
	"github.com/git-pkgs/watch/internal/github"
	"github.com/git-pkgs/watch/internal/npm"
	"github.com/git-pkgs/watch/store"
)

const defaultConcurrency = 5

// Package identifies one watched package.
type Package struct {
	// Name is the npm package name, scoped names included.
	Name string

	// Tag is the dist-tag to watch; DefaultTag if empty.
	Tag string
}

// Options configure a Watcher.
type Options struct {
	// RegistryURL is the npm registry endpoint; DefaultRegistryURL if empty.
	RegistryURL string

	// GitHubAPIURL overrides the release API endpoint, for testing and
	// GitHub Enterprise hosts.
	GitHubAPIURL string

	// IncludePrerelease lets hyphenated versions through the filter.
	IncludePrerelease bool

	// SkipInitial suppresses the notification for the first observation
	// of each package.
	SkipInitial bool

	// DebugMode simulates a change per package without touching the store.
	DebugMode bool

	// Enrich requests GitHub release enrichment for detected changes.
	Enrich bool

	// Concurrency bounds how many packages are checked in parallel.
	// Defaults to 5. Each package is only ever checked by one goroutine
	// per batch, so store keys never race.
	Concurrency int

	// Logger receives progress and skip diagnostics. Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger
}

// Watcher checks a fixed set of packages for dist-tag movement.
type Watcher struct {
	packages []Package
	checker  *core.Checker
	opts     Options
	log      logrus.FieldLogger
}

// NewWatcher creates a watcher over the given packages. The store must be
// the same logical store across runs; c may be nil for the default client.
// Package entries must be unique per (name, tag): duplicates would check
// the same store key from two goroutines in one batch.
func NewWatcher(packages []Package, st store.Store, c *client.Client, opts Options) *Watcher {
	if c == nil {
		c = client.DefaultClient()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	checker := core.NewChecker(
		npm.New(opts.RegistryURL, c),
		github.NewResolver(opts.GitHubAPIURL, c),
		st,
		log,
	)
	return &Watcher{
		packages: packages,
		checker:  checker,
		opts:     opts,
		log:      log,
	}
}

// CheckOne runs a single package check with the watcher's policy.
func (w *Watcher) CheckOne(ctx context.Context, pkg Package) (*Change, error) {
	return w.checker.Check(ctx, pkg.Name, core.CheckOptions{
		Tag:               pkg.Tag,
		IncludePrerelease: w.opts.IncludePrerelease,
		SkipInitial:       w.opts.SkipInitial,
		DebugMode:         w.opts.DebugMode,
		Enrich:            w.opts.Enrich,
	})
}

// CheckAll checks every configured package and returns the detected
// changes in input order. Checks run in parallel up to the configured
// concurrency; a failed check is logged and skipped so one broken package
// never aborts the rest of the batch.
func (w *Watcher) CheckAll(ctx context.Context) []Change {
	if len(w.packages) == 0 {
		return nil
	}

	results := make([]*Change, len(w.packages))
	sem := make(chan struct{}, w.opts.Concurrency)
	var wg sync.WaitGroup

	for i, pkg := range w.packages {
		wg.Add(1)
		go func(i int, pkg Package) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			change, err := w.CheckOne(ctx, pkg)
			if err != nil {
				w.log.Warnf("[watch] %s: check failed: %v", pkg.Name, err)
				return
			}
			results[i] = change
		}(i, pkg)
	}
	wg.Wait()

	changes := make([]Change, 0, len(results))
	for _, c := range results {
		if c != nil {
			changes = append(changes, *c)
		}
	}
	return changes
}

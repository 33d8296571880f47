// Package watch polls the npm registry for dist-tag changes on a configured
// set of packages, classifies semantic-version transitions, and optionally
// enriches detected changes with GitHub release metadata.
//
// Basic usage:
//
//	st := store.NewMemory()
//	w := watch.NewWatcher([]watch.Package{{Name: "react"}}, st, nil, watch.Options{
//		SkipInitial: true,
//		Enrich:      true,
//	})
//
//	changes := w.CheckAll(context.Background())
//	for _, c := range changes {
//		fmt.Println(c.Package, c.FromVersion, "->", c.ToVersion, c.Kind)
//	}
//
// The store is owned by the caller and must survive across runs for change
// detection to work; see the store package for the available backends.
package watch

import (
	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/watch/client"
	"github.com/git-pkgs/watch/internal/core"
	"github.com/git-pkgs/watch/internal/npm"
	"github.com/git-pkgs/watch/internal/repourl"
	"github.com/git-pkgs/watch/internal/version"
	"github.com/git-pkgs/watch/store"
)

// Re-export core types
type (
	// Change is the emitted record for one detected version transition.
	Change = core.Change

	// CheckOptions control one package check.
	CheckOptions = core.CheckOptions

	// ChangeKind describes the nature of a version transition.
	ChangeKind = version.ChangeKind

	// Store maps watch keys to last observed version strings.
	Store = store.Store
)

// Re-export change kinds
const (
	Major      = version.Major
	Minor      = version.Minor
	Patch      = version.Patch
	Prerelease = version.Prerelease
	Unknown    = version.Unknown
)

// NoPriorVersion is the sentinel recorded as the prior version when a
// package is observed for the first time.
const NoPriorVersion = version.NoPrior

// DefaultTag is the dist-tag watched when none is configured.
const DefaultTag = core.DefaultTag

// DefaultRegistryURL is the public npm registry endpoint.
const DefaultRegistryURL = npm.DefaultURL

// Re-export client types
type (
	// Client is an HTTP client with retry logic for JSON APIs.
	Client = client.Client

	// Option configures a Client.
	Option = client.Option
)

// Re-export errors
var (
	ErrNotFound = client.ErrNotFound
)

// Error types
type (
	HTTPError      = client.HTTPError
	RateLimitError = client.RateLimitError
)

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// WithUserAgent sets the User-Agent header.
var WithUserAgent = client.WithUserAgent

// Classify compares two version strings and returns the kind of change.
func Classify(from, to string) ChangeKind {
	return version.Classify(from, to)
}

// NormalizeRepoURL rewrites a raw repository reference (git+ssh, git://,
// github: shorthand) into a plain HTTPS URL.
func NormalizeRepoURL(raw string) string {
	return repourl.Normalize(raw)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Package specs may be given as PURLs (pkg:npm/@babel/core); only the npm
// type is meaningful to this module.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// Package github resolves release records for published versions by
// guessing tag naming conventions against the GitHub release API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/git-pkgs/watch/client"
)

// DefaultAPIURL is the public GitHub API endpoint.
const DefaultAPIURL = "https://api.github.com"

var ownerRepoPattern = regexp.MustCompile(`github\.com[/:]([\w-]+)/([\w-]+)`)

// Release is the subset of a GitHub release record the watcher surfaces.
type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// Resolver looks up releases for repository/version pairs.
type Resolver struct {
	apiURL   string
	client   *client.Client
	breakers *hostBreakers
}

// NewResolver creates a resolver against the given API base URL.
// If apiURL is empty, the public GitHub API is used.
func NewResolver(apiURL string, c *client.Client) *Resolver {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if c == nil {
		c = client.DefaultClient()
	}
	return &Resolver{
		apiURL:   strings.TrimSuffix(apiURL, "/"),
		client:   c,
		breakers: newHostBreakers(),
	}
}

// ParseOwnerRepo extracts the owner and repository name from a GitHub-style
// repository URL. Returns ok=false for non-GitHub or unparseable input.
func ParseOwnerRepo(repoURL string) (owner, repo string, ok bool) {
	m := ownerRepoPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// CandidateTags returns the tag names to try for a version, in decreasing
// order of how common the convention is: semver with a v prefix, the bare
// version, then package-qualified forms used by monorepos.
func CandidateTags(repo, version string) []string {
	return []string{
		"v" + version,
		version,
		repo + "@" + version,
		repo + "-" + version,
	}
}

// ResolveRelease finds the release corresponding to a version of the given
// repository. Candidate tags are tried in order and the first release with
// a non-empty page URL wins; individual lookup failures are skipped.
// Returns ok=false once all candidates are exhausted. Never returns an
// error: a missing release is an expected outcome, not a failure.
func (r *Resolver) ResolveRelease(ctx context.Context, repoURL, version string) (*Release, bool) {
	owner, repo, ok := ParseOwnerRepo(repoURL)
	if !ok {
		return nil, false
	}

	for _, tag := range CandidateTags(repo, version) {
		rel, err := r.fetchReleaseByTag(ctx, owner, repo, tag)
		if err != nil || rel == nil || rel.HTMLURL == "" {
			continue
		}
		if rel.Name == "" {
			rel.Name = tag
		}
		return rel, true
	}
	return nil, false
}

// BreakerState reports the circuit breaker state per API host, for
// health logging.
func (r *Resolver) BreakerState() map[string]string {
	return r.breakers.state()
}

func (r *Resolver) fetchReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", r.apiURL, owner, repo, url.PathEscape(tag))

	var rel Release
	err := r.breakers.call(r.apiURL, func() (failed bool, err error) {
		headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
		if getErr := r.client.GetJSONWithHeaders(ctx, u, headers, &rel); getErr != nil {
			// A missing tag is a healthy response from the API and must
			// not count against the breaker.
			if httpErr, ok := getErr.(*client.HTTPError); ok && httpErr.IsNotFound() {
				return false, getErr
			}
			return true, getErr
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// Package npm provides a metadata client for the npm registry, reduced to
// what dist-tag watching needs: tag pointers, publish times, and the
// repository reference.
package npm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/git-pkgs/watch/client"
)

// DefaultURL is the public npm registry endpoint.
const DefaultURL = "https://registry.npmjs.org"

// Metadata is the registry document for one package.
type Metadata struct {
	Name       string            `json:"name"`
	DistTags   map[string]string `json:"dist-tags"`
	Time       map[string]string `json:"time"`
	Repository any               `json:"repository"`
}

// VersionFor resolves a dist-tag to the version it points at.
func (m *Metadata) VersionFor(tag string) (string, bool) {
	v, ok := m.DistTags[tag]
	return v, ok && v != ""
}

// PublishedAt returns the RFC 3339 publish timestamp for a version, or ""
// if the registry did not record one.
func (m *Metadata) PublishedAt(version string) string {
	return m.Time[version]
}

// Registry fetches package metadata from an npm-compatible registry.
type Registry struct {
	baseURL string
	client  *client.Client
}

// New creates a registry client. If baseURL is empty, the public npm
// registry is used.
func New(baseURL string, c *client.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = client.DefaultClient()
	}
	return &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  c,
	}
}

// FetchMetadata retrieves the registry document for a package. The name is
// escaped as a single path segment, so scoped names like "@types/node"
// travel as one encoded unit.
func (r *Registry) FetchMetadata(ctx context.Context, name string) (*Metadata, error) {
	escapedName := url.PathEscape(name)
	u := fmt.Sprintf("%s/%s", r.baseURL, escapedName)

	var meta Metadata
	if err := r.client.GetJSON(ctx, u, &meta); err != nil {
		if httpErr, ok := err.(*client.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &NotFoundError{Name: name}
		}
		return nil, err
	}
	return &meta, nil
}

// NotFoundError indicates the registry has no document for a package.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("npm: package %s not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return client.ErrNotFound
}

// PackageURL returns the npmjs.com web page for a package version.
func PackageURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", name, version)
	}
	return fmt.Sprintf("https://www.npmjs.com/package/%s", name)
}

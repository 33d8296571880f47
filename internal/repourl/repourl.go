// Package repourl canonicalizes the heterogeneous repository references
// found in registry metadata into plain HTTPS URLs.
package repourl

import "strings"

// Normalize rewrites a raw repository reference into a plain HTTPS URL.
// It is a best-effort string rewrite: no validation is performed and a
// string is always returned.
func Normalize(raw string) string {
	u := strings.TrimPrefix(raw, "git+")
	if strings.HasPrefix(u, "git://") {
		u = "https://" + strings.TrimPrefix(u, "git://")
	}
	u = strings.TrimSuffix(u, ".git")
	if strings.HasPrefix(u, "github:") {
		u = "https://github.com/" + strings.TrimPrefix(u, "github:")
	}
	return u
}

// FromMetadata extracts and normalizes a repository URL from the raw
// repository field of registry metadata. npm manifests carry the field as
// a bare string, a {type, url} object, or an array of such objects.
// Returns "" if no usable reference is present.
func FromMetadata(repo any) string {
	switch r := repo.(type) {
	case string:
		return Normalize(r)
	case map[string]any:
		if url, ok := r["url"].(string); ok {
			return Normalize(url)
		}
	case []any:
		if len(r) > 0 {
			if m, ok := r[0].(map[string]any); ok {
				if url, ok := m["url"].(string); ok {
					return Normalize(url)
				}
			}
		}
	}
	return ""
}

package core

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/git-pkgs/watch/client"
	"github.com/git-pkgs/watch/internal/github"
	"github.com/git-pkgs/watch/internal/npm"
	"github.com/git-pkgs/watch/internal/version"
	"github.com/git-pkgs/watch/store"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// registryServer serves a minimal registry document for every request.
func registryServer(t *testing.T, doc map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func newTestChecker(registryURL, githubURL string, st store.Store) *Checker {
	c := client.NewClient(client.WithMaxRetries(0))
	return NewChecker(
		npm.New(registryURL, c),
		github.NewResolver(githubURL, c),
		st,
		quietLogger(),
	)
}

func TestCheckMinorUpdate(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"name":      "react",
		"dist-tags": map[string]string{"latest": "18.3.1"},
		"time":      map[string]string{"18.3.1": "2024-04-26T16:09:06.245Z"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "react@latest", "18.2.0")

	checker := newTestChecker(server.URL, "", st)
	change, err := checker.Check(ctx, "react", CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change record")
	}

	if change.Kind != version.Minor {
		t.Errorf("Kind = %q, want %q", change.Kind, version.Minor)
	}
	if change.FromVersion != "18.2.0" || change.ToVersion != "18.3.1" {
		t.Errorf("transition = %s -> %s", change.FromVersion, change.ToVersion)
	}
	if change.PublishedAt != "2024-04-26T16:09:06.245Z" {
		t.Errorf("PublishedAt = %q", change.PublishedAt)
	}
	if change.RegistryURL != "https://www.npmjs.com/package/react/v/18.3.1" {
		t.Errorf("RegistryURL = %q", change.RegistryURL)
	}
	if got := change.InstallCommand(); got != "npm install react@18.3.1" {
		t.Errorf("InstallCommand = %q", got)
	}

	if v, _, _ := st.Get(ctx, "react@latest"); v != "18.3.1" {
		t.Errorf("store not updated: %q", v)
	}
}

func TestCheckFirstRunSkipInitial(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "18.2.0"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	checker := newTestChecker(server.URL, "", st)

	change, err := checker.Check(ctx, "react", CheckOptions{SkipInitial: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change != nil {
		t.Errorf("expected no record on first run with SkipInitial, got %+v", change)
	}

	if v, found, _ := st.Get(ctx, "react@latest"); !found || v != "18.2.0" {
		t.Errorf("store should be initialized to 18.2.0, got %q (found=%v)", v, found)
	}
}

func TestCheckFirstRunNotify(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "18.2.0"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	checker := newTestChecker(server.URL, "", st)

	change, err := checker.Check(ctx, "react", CheckOptions{SkipInitial: false})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected an initial-detection record")
	}

	if change.FromVersion != version.NoPrior {
		t.Errorf("FromVersion = %q, want sentinel %q", change.FromVersion, version.NoPrior)
	}
	if change.ToVersion != "18.2.0" {
		t.Errorf("ToVersion = %q", change.ToVersion)
	}
	if change.Kind != version.Unknown {
		t.Errorf("Kind = %q, want %q", change.Kind, version.Unknown)
	}
	if v, _, _ := st.Get(ctx, "react@latest"); v != "18.2.0" {
		t.Errorf("store = %q, want 18.2.0", v)
	}
}

func TestCheckNoChange(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "18.3.1"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "react@latest", "18.3.1")

	checker := newTestChecker(server.URL, "", st)
	change, err := checker.Check(ctx, "react", CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change != nil {
		t.Errorf("expected no record for unchanged version, got %+v", change)
	}
}

func TestCheckPrereleaseFiltered(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "18.3.0-beta.1"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "react@latest", "18.2.0")

	checker := newTestChecker(server.URL, "", st)
	change, err := checker.Check(ctx, "react", CheckOptions{IncludePrerelease: false})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change != nil {
		t.Errorf("expected prerelease to be filtered, got %+v", change)
	}
	if v, _, _ := st.Get(ctx, "react@latest"); v != "18.2.0" {
		t.Errorf("store should be untouched, got %q", v)
	}
}

func TestCheckPrereleaseIncluded(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"next": "19.0.0-rc.0"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "react@next", "19.0.0-beta.1")

	checker := newTestChecker(server.URL, "", st)
	change, err := checker.Check(ctx, "react", CheckOptions{Tag: "next", IncludePrerelease: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change record")
	}
	if change.Kind != version.Prerelease {
		t.Errorf("Kind = %q, want %q", change.Kind, version.Prerelease)
	}
	if change.Tag != "next" {
		t.Errorf("Tag = %q", change.Tag)
	}
}

func TestCheckMissingTag(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "1.0.0"},
	})
	defer server.Close()

	ctx := context.Background()
	checker := newTestChecker(server.URL, "", store.NewMemory())
	change, err := checker.Check(ctx, "react", CheckOptions{Tag: "canary"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change != nil {
		t.Errorf("expected no record for missing tag, got %+v", change)
	}
}

func TestCheckDebugMode(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "18.3.1"},
	})
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemory()
	checker := newTestChecker(server.URL, "", st)

	change, err := checker.Check(ctx, "react", CheckOptions{DebugMode: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a simulated change")
	}

	if change.FromVersion != "18.3.0" {
		t.Errorf("synthetic prior = %q, want 18.3.0", change.FromVersion)
	}
	if change.Kind != version.Patch {
		t.Errorf("Kind = %q, want %q", change.Kind, version.Patch)
	}
	if st.Len() != 0 {
		t.Error("debug mode must not write to the store")
	}

	// A second run keeps re-simulating because nothing was persisted.
	again, err := checker.Check(ctx, "react", CheckOptions{DebugMode: true})
	if err != nil || again == nil {
		t.Fatalf("second debug run = %+v, err=%v", again, err)
	}
}

func TestCheckDebugModeShortVersion(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "2.1"},
	})
	defer server.Close()

	checker := newTestChecker(server.URL, "", store.NewMemory())
	change, err := checker.Check(context.Background(), "pkg", CheckOptions{DebugMode: true})
	if err != nil || change == nil {
		t.Fatalf("Check = %+v, err=%v", change, err)
	}
	if change.FromVersion != "0.0.0" {
		t.Errorf("synthetic prior = %q, want baseline 0.0.0", change.FromVersion)
	}
}

func TestCheckDebugModePatchZero(t *testing.T) {
	server := registryServer(t, map[string]interface{}{
		"dist-tags": map[string]string{"latest": "2.1.0"},
	})
	defer server.Close()

	checker := newTestChecker(server.URL, "", store.NewMemory())
	change, err := checker.Check(context.Background(), "pkg", CheckOptions{DebugMode: true})
	if err != nil || change == nil {
		t.Fatalf("Check = %+v, err=%v", change, err)
	}
	if change.FromVersion != "2.1.0" {
		t.Errorf("synthetic prior = %q, want floor at 2.1.0", change.FromVersion)
	}
}

func TestCheckFetchErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := newTestChecker(server.URL, "", store.NewMemory())
	if _, err := checker.Check(context.Background(), "gone", CheckOptions{}); err == nil {
		t.Fatal("expected registry fetch error to propagate")
	}
}

func TestCheckEnrichmentSuccess(t *testing.T) {
	var githubRequests []string
	githubSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubRequests = append(githubRequests, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tag_name": "v18.3.1",
			"name":     "React 18.3.1",
			"body":     "release notes here",
			"html_url": "https://github.com/facebook/react/releases/tag/v18.3.1",
		})
	}))
	defer githubSrv.Close()

	registrySrv := registryServer(t, map[string]interface{}{
		"dist-tags":  map[string]string{"latest": "18.3.1"},
		"repository": map[string]string{"type": "git", "url": "git+https://github.com/facebook/react.git"},
	})
	defer registrySrv.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "react@latest", "18.2.0")

	checker := newTestChecker(registrySrv.URL, githubSrv.URL, st)
	change, err := checker.Check(ctx, "react", CheckOptions{Enrich: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change record")
	}

	if change.RepositoryURL != "https://github.com/facebook/react" {
		t.Errorf("RepositoryURL = %q", change.RepositoryURL)
	}
	if change.ChangelogURL != "https://github.com/facebook/react/releases/tag/v18.3.1" {
		t.Errorf("ChangelogURL = %q", change.ChangelogURL)
	}
	if change.ReleaseTitle != "React 18.3.1" {
		t.Errorf("ReleaseTitle = %q", change.ReleaseTitle)
	}
	if change.ReleaseNotes != "release notes here" {
		t.Errorf("ReleaseNotes = %q", change.ReleaseNotes)
	}
	if len(githubRequests) != 1 {
		t.Errorf("expected 1 release lookup, got %d: %v", len(githubRequests), githubRequests)
	}
}

func TestCheckEnrichmentFallback(t *testing.T) {
	githubSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer githubSrv.Close()

	registrySrv := registryServer(t, map[string]interface{}{
		"dist-tags":  map[string]string{"latest": "2.0.0"},
		"repository": "git+https://github.com/some/lib.git",
	})
	defer registrySrv.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "lib@latest", "1.0.0")

	checker := newTestChecker(registrySrv.URL, githubSrv.URL, st)
	change, err := checker.Check(ctx, "lib", CheckOptions{Enrich: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change record")
	}

	if change.ChangelogURL != "https://github.com/some/lib/releases/tag/v2.0.0" {
		t.Errorf("ChangelogURL = %q, want generic fallback", change.ChangelogURL)
	}
	if change.ReleaseTitle != "" || change.ReleaseNotes != "" {
		t.Errorf("release fields should be absent on fallback: %q %q", change.ReleaseTitle, change.ReleaseNotes)
	}
	// The store update happens regardless of enrichment outcome.
	if v, _, _ := st.Get(ctx, "lib@latest"); v != "2.0.0" {
		t.Errorf("store = %q, want 2.0.0", v)
	}
}

func TestCheckEnrichmentNonGitHub(t *testing.T) {
	registrySrv := registryServer(t, map[string]interface{}{
		"dist-tags":  map[string]string{"latest": "2.0.0"},
		"repository": "https://gitlab.com/group/lib.git",
	})
	defer registrySrv.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "lib@latest", "1.0.0")

	checker := newTestChecker(registrySrv.URL, "", st)
	change, err := checker.Check(ctx, "lib", CheckOptions{Enrich: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change record")
	}
	if change.RepositoryURL != "https://gitlab.com/group/lib" {
		t.Errorf("RepositoryURL = %q", change.RepositoryURL)
	}
	if change.ChangelogURL != "" {
		t.Errorf("no changelog URL expected for non-GitHub repo, got %q", change.ChangelogURL)
	}
}

func TestCheckEnrichDisabled(t *testing.T) {
	githubSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no release lookup should happen when enrichment is off")
	}))
	defer githubSrv.Close()

	registrySrv := registryServer(t, map[string]interface{}{
		"dist-tags":  map[string]string{"latest": "2.0.0"},
		"repository": "git+https://github.com/some/lib.git",
	})
	defer registrySrv.Close()

	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, "lib@latest", "1.0.0")

	checker := newTestChecker(registrySrv.URL, githubSrv.URL, st)
	change, err := checker.Check(ctx, "lib", CheckOptions{Enrich: false})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change record")
	}
	if change.RepositoryURL != "" || change.ChangelogURL != "" {
		t.Errorf("enrichment fields should be absent: %q %q", change.RepositoryURL, change.ChangelogURL)
	}
}

func TestDecrementPatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"18.3.1", "18.3.0"},
		{"2.1.0", "2.1.0"},
		{"1.0", "0.0.0"},
		{"7", "0.0.0"},
		{"1.2.x", "1.2.0"},
	}
	for _, tt := range tests {
		if got := decrementPatch(tt.in); got != tt.want {
			t.Errorf("decrementPatch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoreKey(t *testing.T) {
	if got := storeKey("@types/node", "latest"); got != "@types/node@latest" {
		t.Errorf("storeKey = %q", got)
	}
	if !strings.Contains(storeKey("react", "next"), "next") {
		t.Error("storeKey must namespace by tag")
	}
}

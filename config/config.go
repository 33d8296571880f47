// Package config loads watcher configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/purl"
)

// Config is the top-level configuration for npmwatch.
type Config struct {
	// Registry is the npm registry endpoint; the public registry if empty.
	Registry string `yaml:"registry"`

	// Tag is the default dist-tag for packages that don't set their own.
	Tag string `yaml:"tag"`

	Packages []PackageConfig `yaml:"packages"`

	IncludePrerelease bool `yaml:"include_prerelease"`
	SkipInitial       bool `yaml:"skip_initial"`
	Enrich            bool `yaml:"enrich"`
	Concurrency       int  `yaml:"concurrency"`

	// GithubToken authenticates release lookups; supports ${ENV_VAR}
	// placeholders.
	GithubToken string `yaml:"github_token"`

	// Interval is the polling period for watch mode (e.g. "15m").
	Interval Duration `yaml:"interval"`

	Store StoreConfig `yaml:"store"`
}

// PackageConfig describes one watched package. Name accepts plain npm
// names (@scope/name included) or npm PURLs (pkg:npm/@babel/core).
type PackageConfig struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
}

// StoreConfig selects and configures the last-seen store backend.
type StoreConfig struct {
	// Type is "memory", "file", or "redis". Defaults to "file".
	Type string `yaml:"type"`

	// Path is the store file location for the file backend.
	Path string `yaml:"path"`

	// Redis backend settings.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	HashKey  string `yaml:"hash_key"`
}

// Duration decodes YAML strings like "15m" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Load reads and parses a configuration file, expanding environment
// variables in the GitHub token and resolving PURL package specs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.GithubToken = expandEnv(cfg.GithubToken)

	for i := range cfg.Packages {
		name, err := resolvePackageName(cfg.Packages[i].Name)
		if err != nil {
			return nil, err
		}
		cfg.Packages[i].Name = name
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfigFile searches standard locations for a configuration file and
// returns the first one found.
func FindConfigFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	locations := []string{"."}
	if homeDir != "" {
		locations = append(locations, filepath.Join(homeDir, ".config", "npmwatch"))
	}

	patterns := []string{".npmwatch.yaml", ".npmwatch.yml", "npmwatch.yaml", "npmwatch.yml"}

	for _, dir := range locations {
		for _, name := range patterns {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no configuration file found")
}

// resolvePackageName accepts a plain npm name or an npm PURL spec and
// returns the registry package name.
func resolvePackageName(spec string) (string, error) {
	if !strings.HasPrefix(spec, "pkg:") {
		return spec, nil
	}

	p, err := purl.Parse(spec)
	if err != nil {
		return "", fmt.Errorf("invalid package spec %q: %w", spec, err)
	}
	if p.Type != "npm" {
		return "", fmt.Errorf("unsupported package spec %q: only npm PURLs are accepted", spec)
	}
	if p.Namespace != "" {
		return p.Namespace + "/" + p.Name, nil
	}
	return p.Name, nil
}

func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

func validate(cfg *Config) error {
	if len(cfg.Packages) == 0 {
		return fmt.Errorf("config: at least one package is required")
	}
	seen := make(map[string]bool, len(cfg.Packages))
	for _, p := range cfg.Packages {
		if p.Name == "" {
			return fmt.Errorf("config: package entry without a name")
		}
		tag := p.Tag
		if tag == "" {
			tag = cfg.Tag
		}
		if tag == "" {
			tag = "latest"
		}
		// Duplicate entries would run concurrent checks against the
		// same store key.
		key := p.Name + "@" + tag
		if seen[key] {
			return fmt.Errorf("config: duplicate package entry %s", key)
		}
		seen[key] = true
	}

	switch cfg.Store.Type {
	case "", "memory", "file", "redis":
	default:
		return fmt.Errorf("config: unknown store type %q", cfg.Store.Type)
	}
	if cfg.Store.Type == "redis" && cfg.Store.Addr == "" {
		return fmt.Errorf("config: redis store requires addr")
	}
	return nil
}

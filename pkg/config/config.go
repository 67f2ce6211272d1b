package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration: provider credentials, the
// backend pool, and the routing policy.
type Config struct {
	APIKeys  APIKeys   `yaml:"api_keys,omitempty"`
	Backends []Backend `yaml:"backends"`
	Routing  Routing   `yaml:"routing"`

	ConfigDir string `yaml:"-"`
}

// APIKeys holds provider credentials from file; environment variables
// take precedence.
type APIKeys struct {
	Anthropic string `yaml:"anthropic,omitempty"`
	OpenAI    string `yaml:"openai,omitempty"`
	Google    string `yaml:"google,omitempty"`
	DeepSeek  string `yaml:"deepseek,omitempty"`
}

// Backend declares one routable backend.
type Backend struct {
	Name        string   `yaml:"name"`
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model,omitempty"`
	Specialties []string `yaml:"specialties,omitempty"`
	Disabled    bool     `yaml:"disabled,omitempty"`
}

// Routing is the dispatch policy consumed by the router.
type Routing struct {
	// Default is used when no heuristic picks a backend.
	Default string `yaml:"default,omitempty"`
	// Reliable is fronted for long or complex content.
	Reliable         string       `yaml:"reliable,omitempty"`
	LengthThreshold  int          `yaml:"length_threshold,omitempty"`
	ComplexTopics    []string     `yaml:"complex_topics,omitempty"`
	AttemptTimeoutMs int          `yaml:"attempt_timeout_ms,omitempty"`
	Augmentation     Augmentation `yaml:"augmentation,omitempty"`
}

// Augmentation wires the needs-augmentation backend to the auxiliary
// backend that fetches background context for it.
type Augmentation struct {
	Target    string   `yaml:"target,omitempty"`
	Auxiliary string   `yaml:"auxiliary,omitempty"`
	Triggers  []string `yaml:"triggers,omitempty"`
}

var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"google":    true,
	"deepseek":  true,
	"mock":      true,
}

// Load reads configuration from ~/.switchboard/config.yaml and the
// environment. Environment variables take precedence over file values.
// A missing config file yields the built-in default configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		cfg.ConfigDir = configDir
		applyEnv(cfg)
		return cfg, nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ConfigDir = configDir
	return cfg, nil
}

// LoadFile reads configuration from a specific YAML file. Environment
// variables still take precedence for API keys.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration that works without any API keys: three
// mock-backed backends covering the common specialties.
func Default() *Config {
	cfg := &Config{
		Backends: []Backend{
			{
				Name:        "general",
				Provider:    "mock",
				Specialties: []string{"explain", "summarize", "write", "chat", "question"},
			},
			{
				Name:        "code",
				Provider:    "mock",
				Specialties: []string{"code", "function", "debug", "implement", "script"},
			},
			{
				Name:        "creative",
				Provider:    "mock",
				Specialties: []string{"story", "poem", "brainstorm", "creative", "design"},
			},
		},
		Routing: Routing{
			Default:  "general",
			Reliable: "creative",
			Augmentation: Augmentation{
				Target:    "general",
				Auxiliary: "code",
			},
		},
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

// DefaultRouting returns a routing policy with the built-in thresholds
// and no backend bindings.
func DefaultRouting() *Routing {
	r := &Routing{}
	applyRoutingDefaults(r)
	return r
}

func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	applyRoutingDefaults(&cfg.Routing)
}

func applyRoutingDefaults(r *Routing) {
	if r == nil {
		return
	}
	if r.AttemptTimeoutMs == 0 {
		r.AttemptTimeoutMs = 45000
	}
	if r.LengthThreshold == 0 {
		r.LengthThreshold = 300
	}
	if r.ComplexTopics == nil {
		r.ComplexTopics = []string{
			"architecture", "refactor", "distributed", "concurrency",
			"security", "migration", "performance",
		}
	}
	if r.Augmentation.Target != "" && r.Augmentation.Triggers == nil {
		r.Augmentation.Triggers = []string{
			"latest", "current", "today", "recent", "news", "version",
		}
	}
}

func applyEnv(cfg *Config) {
	cfg.APIKeys.Anthropic = getEnvOrDefault("ANTHROPIC_API_KEY", cfg.APIKeys.Anthropic)
	cfg.APIKeys.OpenAI = getEnvOrDefault("OPENAI_API_KEY", cfg.APIKeys.OpenAI)
	cfg.APIKeys.Google = getEnvOrDefault("GOOGLE_API_KEY", cfg.APIKeys.Google)
	cfg.APIKeys.DeepSeek = getEnvOrDefault("DEEPSEEK_API_KEY", cfg.APIKeys.DeepSeek)
}

// Validate cross-checks the configuration: backend declarations must be
// well formed and every routing reference must name a declared backend.
func (c *Config) Validate() error {
	var errs []error

	names := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			errs = append(errs, errors.New("backend with empty name"))
			continue
		}
		if names[b.Name] {
			errs = append(errs, fmt.Errorf("duplicate backend name %q", b.Name))
		}
		names[b.Name] = true
		if b.Provider != "" && !knownProviders[b.Provider] {
			errs = append(errs, fmt.Errorf("backend %q: unknown provider %q", b.Name, b.Provider))
		}
	}

	check := func(field, name string) {
		if name != "" && !names[name] {
			errs = append(errs, fmt.Errorf("%s names undeclared backend %q", field, name))
		}
	}
	check("routing.default", c.Routing.Default)
	check("routing.reliable", c.Routing.Reliable)
	check("routing.augmentation.target", c.Routing.Augmentation.Target)
	check("routing.augmentation.auxiliary", c.Routing.Augmentation.Auxiliary)

	if c.Routing.AttemptTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("routing.attempt_timeout_ms must not be negative"))
	}
	if c.Routing.LengthThreshold < 0 {
		errs = append(errs, fmt.Errorf("routing.length_threshold must not be negative"))
	}

	return errors.Join(errs...)
}

// HasProvider reports whether the API key for a provider is configured.
// The mock provider needs no key.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "anthropic":
		return c.APIKeys.Anthropic != ""
	case "openai":
		return c.APIKeys.OpenAI != ""
	case "google":
		return c.APIKeys.Google != ""
	case "deepseek":
		return c.APIKeys.DeepSeek != ""
	case "mock", "":
		return true
	default:
		return false
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".switchboard")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

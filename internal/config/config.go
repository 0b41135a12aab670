package config

// #region imports
import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"stepassist/internal/guard"
	"stepassist/internal/prompt"
	"stepassist/internal/route"
)

// #endregion

// #region types

// Config is the full daemon configuration.
type Config struct {
	Guard    GuardConfig    `yaml:"guard"`
	Window   WindowConfig   `yaml:"window"`
	Route    RouteConfig    `yaml:"route"`
	Model    ModelConfig    `yaml:"model"`
	Fallback FallbackConfig `yaml:"fallback"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// GuardConfig tunes observation admission.
type GuardConfig struct {
	HighConfidence         float64 `yaml:"high_confidence"`
	MediumConfidence       float64 `yaml:"medium_confidence"`
	MaxForwardJump         int     `yaml:"max_forward_jump"`
	Confirmations          int     `yaml:"confirmations"`
	ConfirmationTTLSeconds int     `yaml:"confirmation_ttl_seconds"`
}

// WindowConfig bounds the per-activity observation history.
type WindowConfig struct {
	Capacity      int `yaml:"capacity"`
	MaxActivities int `yaml:"max_activities"`
}

// RouteConfig tunes query routing.
type RouteConfig struct {
	DecisionThreshold float64 `yaml:"decision_threshold"`
	MaxQueryLength    int     `yaml:"max_query_length"`
}

// ModelConfig locates the vision-language model.
type ModelConfig struct {
	Host           string `yaml:"host"`
	Name           string `yaml:"name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FallbackConfig shapes the answer path.
type FallbackConfig struct {
	BusyPolicy       string `yaml:"busy_policy"`
	DegradedResponse string `yaml:"degraded_response"`
	BaseContext      string `yaml:"base_context"`
}

// JournalConfig locates the decision journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig exposes the scrape endpoint. Empty addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// CatalogConfig locates the activity catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// #endregion types

// #region defaults

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Guard: GuardConfig{
			HighConfidence:         0.65,
			MediumConfidence:       0.40,
			MaxForwardJump:         2,
			Confirmations:          2,
			ConfirmationTTLSeconds: 10,
		},
		Window: WindowConfig{
			Capacity:      16,
			MaxActivities: 8,
		},
		Route: RouteConfig{
			DecisionThreshold: 0.5,
			MaxQueryLength:    200,
		},
		Model: ModelConfig{
			Host:           "http://127.0.0.1:11434",
			Name:           "qwen2.5vl",
			TimeoutSeconds: 30,
		},
		Fallback: FallbackConfig{
			BusyPolicy:       "reject",
			DegradedResponse: "Sorry, I can't answer that right now. Please try again in a moment.",
			BaseContext:      "Track the wearer's progress through the active procedure and report step changes.",
		},
		Journal: JournalConfig{Path: "stepassist.db"},
		Metrics: MetricsConfig{Addr: ":2112"},
		Catalog: CatalogConfig{Path: "catalog.yaml"},
	}
}

// #endregion defaults

// #region load

// Load layers the YAML file and env overrides onto the defaults, then
// validates. An empty path skips the file and uses defaults plus env.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Model.Host = envOr("STEPASSIST_MODEL_HOST", c.Model.Host)
	c.Model.Name = envOr("STEPASSIST_MODEL_NAME", c.Model.Name)
	c.Journal.Path = envOr("STEPASSIST_DB", c.Journal.Path)
	c.Metrics.Addr = envOr("STEPASSIST_METRICS_ADDR", c.Metrics.Addr)
	c.Catalog.Path = envOr("STEPASSIST_CATALOG", c.Catalog.Path)
	c.Fallback.BusyPolicy = envOr("STEPASSIST_BUSY_POLICY", c.Fallback.BusyPolicy)
	if v := os.Getenv("STEPASSIST_MODEL_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.TimeoutSeconds = n
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate

// Validate rejects configurations the decision core cannot run with.
func (c *Config) Validate() error {
	if c.Guard.HighConfidence <= 0 || c.Guard.HighConfidence > 1 {
		return fmt.Errorf("guard.high_confidence %v outside (0,1]", c.Guard.HighConfidence)
	}
	if c.Guard.MediumConfidence <= 0 || c.Guard.MediumConfidence >= c.Guard.HighConfidence {
		return fmt.Errorf("guard.medium_confidence %v must sit in (0, high)", c.Guard.MediumConfidence)
	}
	if c.Guard.MaxForwardJump < 0 {
		return fmt.Errorf("guard.max_forward_jump %d negative", c.Guard.MaxForwardJump)
	}
	if c.Guard.Confirmations < 1 {
		return fmt.Errorf("guard.confirmations %d must be at least 1", c.Guard.Confirmations)
	}
	if c.Guard.ConfirmationTTLSeconds < 1 {
		return fmt.Errorf("guard.confirmation_ttl_seconds %d must be positive", c.Guard.ConfirmationTTLSeconds)
	}
	if c.Window.Capacity < 1 || c.Window.MaxActivities < 1 {
		return fmt.Errorf("window sizes %d/%d must be positive", c.Window.Capacity, c.Window.MaxActivities)
	}
	if c.Route.DecisionThreshold <= 0 {
		return fmt.Errorf("route.decision_threshold %v must be positive", c.Route.DecisionThreshold)
	}
	if c.Route.MaxQueryLength < 1 {
		return fmt.Errorf("route.max_query_length %d must be positive", c.Route.MaxQueryLength)
	}
	if c.Model.Host == "" || c.Model.Name == "" {
		return fmt.Errorf("model host and name are required")
	}
	if c.Model.TimeoutSeconds < 1 {
		return fmt.Errorf("model.timeout_seconds %d must be positive", c.Model.TimeoutSeconds)
	}
	if _, err := prompt.ParsePolicy(c.Fallback.BusyPolicy); err != nil {
		return fmt.Errorf("fallback.busy_policy: %w", err)
	}
	if c.Fallback.DegradedResponse == "" {
		return fmt.Errorf("fallback.degraded_response is required")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}

// #endregion validate

// #region converters

// GuardSettings maps onto the guard package config.
func (c *Config) GuardSettings() guard.Config {
	return guard.Config{
		HighConfidence:   c.Guard.HighConfidence,
		MediumConfidence: c.Guard.MediumConfidence,
		MaxForwardJump:   c.Guard.MaxForwardJump,
		Confirmations:    c.Guard.Confirmations,
		ConfirmationTTL:  time.Duration(c.Guard.ConfirmationTTLSeconds) * time.Second,
	}
}

// RouteSettings maps onto the route package config.
func (c *Config) RouteSettings() route.Config {
	return route.Config{
		DecisionThreshold: c.Route.DecisionThreshold,
		MaxQueryLength:    c.Route.MaxQueryLength,
		MediumConfidence:  c.Guard.MediumConfidence,
	}
}

// ModelTimeout returns the direct call deadline.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// BusyPolicy returns the validated switch policy.
func (c *Config) BusyPolicy() prompt.Policy {
	return prompt.Policy(c.Fallback.BusyPolicy)
}

// #endregion converters

// Package config loads the tracker configuration from a YAML file with
// environment-variable overrides. Every field has a documented default;
// components still validate their own options at construction.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/kestrelworks/steptrace/internal/answer"
	"github.com/kestrelworks/steptrace/internal/belief"
	"github.com/kestrelworks/steptrace/internal/engine"
	"github.com/kestrelworks/steptrace/internal/fallback"
	"github.com/kestrelworks/steptrace/internal/feed"
	"github.com/kestrelworks/steptrace/internal/match"
	"github.com/kestrelworks/steptrace/internal/monitor"
	"github.com/kestrelworks/steptrace/internal/policy"
)

// #region config-types

// Config is the full tracker configuration.
type Config struct {
	LogLevel     string `koanf:"log_level"`     // zap level, default "info"
	MetricsAddr  string `koanf:"metrics_addr"`  // /metrics listen address, default ":9153"
	ProvenanceDB string `koanf:"provenance_db"` // SQLite path, empty disables the decision log
	TaskFile     string `koanf:"task_file"`     // task definition JSON to index at startup

	Policy   PolicySection   `koanf:"policy"`
	Monitor  MonitorSection  `koanf:"monitor"`
	Fallback FallbackSection `koanf:"fallback"`
	Memory   MemorySection   `koanf:"memory"`
	Matcher  MatcherSection  `koanf:"matcher"`
	Answerer AnswererSection `koanf:"answerer"`
	Feed     FeedSection     `koanf:"feed"`
}

// PolicySection mirrors policy.Config with plain-number durations.
type PolicySection struct {
	HighThreshold         float32 `koanf:"high_threshold"`
	MediumThreshold       float32 `koanf:"medium_threshold"`
	MaxForwardJump        int     `koanf:"max_forward_jump"`
	PendingTTLSeconds     int     `koanf:"pending_ttl_seconds"`
	ConfirmationsRequired int     `koanf:"confirmations_required"`
}

// MonitorSection mirrors monitor.Config.
type MonitorSection struct {
	ConsecutiveLowThreshold int `koanf:"consecutive_low_threshold"`
	DefaultTTLSeconds       int `koanf:"default_ttl_seconds"`
}

// FallbackSection mirrors fallback.Config plus the engine answer budget.
type FallbackSection struct {
	MinQueryConfidence   float32 `koanf:"min_query_confidence"`
	AnswerTimeoutSeconds int     `koanf:"answer_timeout_seconds"`
	DegradedMessage      string  `koanf:"degraded_message"`
}

// MemorySection mirrors belief.Limits.
type MemorySection struct {
	HistoryLimit   int `koanf:"history_limit"`
	WindowMaxCount int `koanf:"window_max_count"`
	WindowMaxBytes int `koanf:"window_max_bytes"`
}

// MatcherSection mirrors match.Config plus the embedding model.
type MatcherSection struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	UseTLS         bool   `koanf:"use_tls"`
	Collection     string `koanf:"collection"`
	TopK           int    `koanf:"top_k"`
	EmbeddingModel string `koanf:"embedding_model"`
	ModelCacheDir  string `koanf:"model_cache_dir"`
}

// AnswererSection mirrors answer.Config. The API key is read from the named
// environment variable, never from the file.
type AnswererSection struct {
	Enabled     bool    `koanf:"enabled"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKeyEnv   string  `koanf:"api_key_env"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// FeedSection mirrors feed.Config.
type FeedSection struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// #endregion config-types

// #region defaults

// Default returns the full default configuration.
func Default() Config {
	pol := policy.DefaultConfig()
	mon := monitor.DefaultConfig()
	fb := fallback.DefaultConfig()
	lim := belief.DefaultLimits()
	mat := match.DefaultConfig()
	ans := answer.DefaultConfig()
	fd := feed.DefaultConfig()

	return Config{
		LogLevel:    "info",
		MetricsAddr: ":9153",
		Policy: PolicySection{
			HighThreshold:         pol.HighThreshold,
			MediumThreshold:       pol.MediumThreshold,
			MaxForwardJump:        pol.MaxForwardJump,
			PendingTTLSeconds:     int(pol.PendingTTL / time.Second),
			ConfirmationsRequired: pol.ConfirmationsRequired,
		},
		Monitor: MonitorSection{
			ConsecutiveLowThreshold: mon.ConsecutiveLowThreshold,
			DefaultTTLSeconds:       int(mon.DefaultTTL / time.Second),
		},
		Fallback: FallbackSection{
			MinQueryConfidence:   fb.MinQueryConfidence,
			AnswerTimeoutSeconds: 30,
			DegradedMessage:      engine.DefaultDegradedMessage,
		},
		Memory: MemorySection{
			HistoryLimit:   lim.HistoryLimit,
			WindowMaxCount: lim.WindowMaxCount,
			WindowMaxBytes: lim.WindowMaxBytes,
		},
		Matcher: MatcherSection{
			Host:           mat.Host,
			Port:           mat.Port,
			Collection:     mat.Collection,
			TopK:           mat.TopK,
			EmbeddingModel: "fast-bge-small-en-v1.5",
			ModelCacheDir:  "local_cache",
		},
		Answerer: AnswererSection{
			Model:       ans.Model,
			APIKeyEnv:   "STEPTRACE_OPENAI_API_KEY",
			MaxTokens:   ans.MaxTokens,
			Temperature: ans.Temperature,
		},
		Feed: FeedSection{
			URL:     fd.URL,
			Subject: fd.Subject,
		},
	}
}

// #endregion defaults

// #region load

const envPrefix = "STEPTRACE_"

// Load reads the YAML file at path (optional) and applies environment
// overrides. Env keys use double underscores as section separators:
// STEPTRACE_POLICY__HIGH_THRESHOLD → policy.high_threshold.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// #endregion load

// #region converters

// EngineOptions builds the engine options from the loaded sections.
func (c Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Policy = policy.Config{
		HighThreshold:         c.Policy.HighThreshold,
		MediumThreshold:       c.Policy.MediumThreshold,
		MaxForwardJump:        c.Policy.MaxForwardJump,
		PendingTTL:            time.Duration(c.Policy.PendingTTLSeconds) * time.Second,
		ConfirmationsRequired: c.Policy.ConfirmationsRequired,
	}
	opts.Monitor = monitor.Config{
		ConsecutiveLowThreshold: c.Monitor.ConsecutiveLowThreshold,
		DefaultTTL:              time.Duration(c.Monitor.DefaultTTLSeconds) * time.Second,
	}
	opts.Fallback = fallback.Config{MinQueryConfidence: c.Fallback.MinQueryConfidence}
	opts.Limits = belief.Limits{
		HistoryLimit:   c.Memory.HistoryLimit,
		WindowMaxCount: c.Memory.WindowMaxCount,
		WindowMaxBytes: c.Memory.WindowMaxBytes,
	}
	opts.AnswerTimeout = time.Duration(c.Fallback.AnswerTimeoutSeconds) * time.Second
	opts.DegradedMessage = c.Fallback.DegradedMessage
	return opts
}

// MatchConfig builds the matcher connection config.
func (c Config) MatchConfig() match.Config {
	return match.Config{
		Host:       c.Matcher.Host,
		Port:       c.Matcher.Port,
		UseTLS:     c.Matcher.UseTLS,
		Collection: c.Matcher.Collection,
		TopK:       c.Matcher.TopK,
	}
}

// AnswerConfig builds the answerer config, resolving the API key env var.
func (c Config) AnswerConfig() answer.Config {
	apiKey := ""
	if c.Answerer.APIKeyEnv != "" {
		apiKey = os.Getenv(c.Answerer.APIKeyEnv)
	}
	return answer.Config{
		BaseURL:     c.Answerer.BaseURL,
		Model:       c.Answerer.Model,
		APIKey:      apiKey,
		MaxTokens:   c.Answerer.MaxTokens,
		Temperature: c.Answerer.Temperature,
	}
}

// FeedConfig builds the observation feed config.
func (c Config) FeedConfig() feed.Config {
	return feed.Config{URL: c.Feed.URL, Subject: c.Feed.Subject}
}

// #endregion converters

// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Features FeaturesConfig `mapstructure:"features"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Model    ModelConfig    `mapstructure:"model"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// --- Ranking pipeline configuration ---

// RankingConfig holds the orchestrator and rule-ranker settings.
type RankingConfig struct {
	// RequestBudget bounds the whole pipeline end to end. milliseconds
	RequestBudget int `mapstructure:"request_budget"`
	// ScoreTimeout is the hard per-call timeout for a single ranker
	// invocation. milliseconds
	ScoreTimeout int `mapstructure:"score_timeout"`
	// DefaultLimit applies when a request omits limit.
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit caps the requested result count.
	MaxLimit int `mapstructure:"max_limit"`

	Rule RuleConfig `mapstructure:"rule"`
}

// RuleConfig holds the deterministic ranker weights. Weights should sum
// to 1.0 so the clamped score stays meaningful across deployments.
type RuleConfig struct {
	FrequencyWeight    float64 `mapstructure:"frequency_weight"`
	RecencyWeight      float64 `mapstructure:"recency_weight"`
	ContextMatchWeight float64 `mapstructure:"context_match_weight"`
	// RecencyHalfLife controls the exponential decay of last-seen
	// recency. hours
	RecencyHalfLife int `mapstructure:"recency_half_life"`
	// ContextMatchExpr is an optional CEL expression evaluated against
	// the request context and candidate; when empty a category/context
	// indicator is used instead.
	ContextMatchExpr string `mapstructure:"context_match_expr"`
}

// FeaturesConfig holds feature-store accessor settings.
type FeaturesConfig struct {
	// StoreTimeout bounds the aggregate read against Postgres. milliseconds
	StoreTimeout int `mapstructure:"store_timeout"`
	// SchemaPath locates the feature schema artifact.
	SchemaPath string `mapstructure:"schema_path"`
}

// CatalogConfig holds candidate-generator settings.
type CatalogConfig struct {
	// TopNPerCategory bounds how many candidates each category contributes.
	TopNPerCategory int `mapstructure:"top_n_per_category"`
	// MaxCandidates bounds the total candidate set per request.
	MaxCandidates int `mapstructure:"max_candidates"`
	// RefreshInterval controls Elasticsearch snapshot rebuilds. seconds
	RefreshInterval int `mapstructure:"refresh_interval"`
}

// ModelConfig holds ML ranker and artifact settings.
type ModelConfig struct {
	// Dir is the model artifact directory; artifacts are stored as
	// <dir>/<version>.json.
	Dir string `mapstructure:"dir"`
	// Version selects the artifact loaded at startup.
	Version string `mapstructure:"version"`
	// HealthWindow is how many recent invocations feed the health check.
	HealthWindow int `mapstructure:"health_window"`
	// MaxErrorRate is the windowed error-rate threshold above which the
	// ranker reports unhealthy.
	MaxErrorRate float64 `mapstructure:"max_error_rate"`
	// LatencyBudget is the windowed average-latency threshold. milliseconds
	LatencyBudget int `mapstructure:"latency_budget"`
}

// CacheConfig holds response-cache settings.
type CacheConfig struct {
	// TTL is deliberately short: cached rankings assume volatile
	// request context. seconds
	TTL int `mapstructure:"ttl"`
	// MaxLocalEntries bounds the in-process fallback cache.
	MaxLocalEntries int `mapstructure:"max_local_entries"`
}

// FeedbackConfig holds feedback emitter settings.
type FeedbackConfig struct {
	QueueSize     int `mapstructure:"queue_size"`
	BatchSize     int `mapstructure:"batch_size"`
	FlushInterval int `mapstructure:"flush_interval"` // milliseconds
	DrainTimeout  int `mapstructure:"drain_timeout"`  // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

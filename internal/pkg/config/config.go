package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Nearby    NearbyConfig    `mapstructure:"nearby"`
	Collector CollectorConfig `mapstructure:"collector"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig selects and addresses the backing store.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// GatewayConfig addresses the restaurant GraphQL gateway.
type GatewayConfig struct {
	URL                string `mapstructure:"url"`
	Auth               string `mapstructure:"auth"`
	Cookie             string `mapstructure:"cookie"`
	UserAgent          string `mapstructure:"user_agent"`
	Origin             string `mapstructure:"origin"`
	Referer            string `mapstructure:"referer"`
	HeadersJSON        string `mapstructure:"headers_json"`
	Region             string `mapstructure:"region"`
	Channel            string `mapstructure:"channel"`
	ServiceMode        string `mapstructure:"service_mode"`
	ExtraVariablesJSON string `mapstructure:"extra_variables_json"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	RetryAttempts      int    `mapstructure:"retry_attempts"`
	RetryBaseDelayMs   int    `mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs    int    `mapstructure:"retry_max_delay_ms"`
}

// Timeout is the per-request deadline.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Headers decodes HeadersJSON. An empty value yields an empty map.
func (g GatewayConfig) Headers() (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(g.HeadersJSON) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(g.HeadersJSON), &out); err != nil {
		return nil, fmt.Errorf("gateway.headers_json: %w", err)
	}
	return out, nil
}

// ExtraVariables decodes ExtraVariablesJSON.
func (g GatewayConfig) ExtraVariables() (map[string]any, error) {
	return decodeObject("gateway.extra_variables_json", g.ExtraVariablesJSON)
}

// NearbyConfig drives the reconciliation nearby search and matcher.
type NearbyConfig struct {
	Operation      string   `mapstructure:"operation"`
	Query          string   `mapstructure:"query"`
	Filter         string   `mapstructure:"filter"`
	InputMergeJSON string   `mapstructure:"input_merge_json"`
	Limit          int      `mapstructure:"limit"`
	MatchMeters    float64  `mapstructure:"match_meters"`
	IDKeys         []string `mapstructure:"id_keys"`
	LatKeys        []string `mapstructure:"lat_keys"`
	LonKeys        []string `mapstructure:"lon_keys"`
}

// InputMerge decodes InputMergeJSON.
func (n NearbyConfig) InputMerge() (map[string]any, error) {
	return decodeObject("nearby.input_merge_json", n.InputMergeJSON)
}

// CollectorConfig tunes the availability poller.
type CollectorConfig struct {
	IntervalMinutes int     `mapstructure:"interval_minutes"`
	BatchSize       int     `mapstructure:"batch_size"`
	RatePerSec      float64 `mapstructure:"rate_per_sec"`
	// ItemPatterns is a ';'-separated list of regular expressions. Commas
	// are legal inside patterns ({0,3}), so they cannot separate entries.
	ItemPatterns  string `mapstructure:"item_patterns"`
	CanonicalOnly bool   `mapstructure:"canonical_only"`
	MetricsPort   int    `mapstructure:"metrics_port"`
}

// Interval returns the pause between passes, at least one minute.
func (c CollectorConfig) Interval() time.Duration {
	return time.Duration(max(c.IntervalMinutes, 1)) * time.Minute
}

// Patterns splits ItemPatterns.
func (c CollectorConfig) Patterns() []string {
	var out []string
	for _, p := range strings.Split(c.ItemPatterns, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReconcileConfig tunes reconciliation runs.
type ReconcileConfig struct {
	LockPath     string `mapstructure:"lock_path"`
	TaskQueue    string `mapstructure:"task_queue"`
	TemporalHost string `mapstructure:"temporal_host"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LogConfig selects level and format (json, text or auto).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MENUWATCH_GATEWAY_URL → gateway.url
	v.SetEnvPrefix("MENUWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "menuwatch")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "menuwatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "menuwatch.db")

	v.SetDefault("gateway.url", "https://use1-prod-th-gateway.rbictg.com/graphql")
	v.SetDefault("gateway.auth", "")
	v.SetDefault("gateway.cookie", "")
	v.SetDefault("gateway.user_agent", "Mozilla/5.0")
	v.SetDefault("gateway.origin", "https://www.timhortons.ca")
	v.SetDefault("gateway.referer", "https://www.timhortons.ca/")
	v.SetDefault("gateway.headers_json", "")
	v.SetDefault("gateway.region", "CA")
	v.SetDefault("gateway.channel", "whitelabel")
	v.SetDefault("gateway.service_mode", "pickup")
	v.SetDefault("gateway.extra_variables_json", "")
	v.SetDefault("gateway.timeout_seconds", 25)
	v.SetDefault("gateway.retry_attempts", 3)
	v.SetDefault("gateway.retry_base_delay_ms", 500)
	v.SetDefault("gateway.retry_max_delay_ms", 5000)

	v.SetDefault("nearby.operation", "NearbyStores")
	v.SetDefault("nearby.query", "")
	v.SetDefault("nearby.filter", "NEARBY")
	v.SetDefault("nearby.input_merge_json", "")
	v.SetDefault("nearby.limit", 5)
	v.SetDefault("nearby.match_meters", 400.0)
	v.SetDefault("nearby.id_keys", []string{"id", "storeid", "store_id", "storenumber", "store_number"})
	v.SetDefault("nearby.lat_keys", []string{"latitude", "lat"})
	v.SetDefault("nearby.lon_keys", []string{"longitude", "lon", "lng"})

	v.SetDefault("collector.interval_minutes", 20)
	v.SetDefault("collector.batch_size", 150)
	v.SetDefault("collector.rate_per_sec", 0.7)
	v.SetDefault("collector.item_patterns", `iced\s*capp;capp[^a-zA-Z]{0,3}glac`)
	v.SetDefault("collector.canonical_only", true)
	v.SetDefault("collector.metrics_port", 9090)

	v.SetDefault("reconcile.lock_path", "/tmp/menuwatch-reconcile.lock")
	v.SetDefault("reconcile.task_queue", "reconcile-queue")
	v.SetDefault("reconcile.temporal_host", "localhost:7233")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// normalize lower-cases enum-like values; the gateway rejects upper-case enums.
func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Gateway.Channel = strings.ToLower(strings.TrimSpace(c.Gateway.Channel))
	c.Gateway.ServiceMode = strings.ToLower(strings.TrimSpace(c.Gateway.ServiceMode))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "database.sqlite_path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}

	if c.Gateway.URL == "" {
		errs = append(errs, "gateway.url is required")
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		errs = append(errs, "gateway.timeout_seconds must be positive")
	}
	if c.Gateway.RetryAttempts < 1 {
		errs = append(errs, "gateway.retry_attempts must be at least 1")
	}
	if _, err := c.Gateway.Headers(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.Gateway.ExtraVariables(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Nearby.Operation == "" {
		errs = append(errs, "nearby.operation is required")
	}
	if c.Nearby.Limit <= 0 {
		errs = append(errs, "nearby.limit must be positive")
	}
	if c.Nearby.MatchMeters <= 0 {
		errs = append(errs, "nearby.match_meters must be positive")
	}
	if len(c.Nearby.IDKeys) == 0 || len(c.Nearby.LatKeys) == 0 || len(c.Nearby.LonKeys) == 0 {
		errs = append(errs, "nearby.id_keys, lat_keys and lon_keys must not be empty")
	}
	if _, err := c.Nearby.InputMerge(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Collector.BatchSize <= 0 {
		errs = append(errs, "collector.batch_size must be positive")
	}
	if c.Collector.RatePerSec <= 0 {
		errs = append(errs, "collector.rate_per_sec must be positive")
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	switch c.Log.Format {
	case "json", "text", "auto":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json, text or auto, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func decodeObject(name, raw string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object: %w", name, err)
	}
	return out, nil
}

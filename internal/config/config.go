package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Scorer     ScorerConfig     `mapstructure:"scorer"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	AI         AIConfig         `mapstructure:"ai"`
	Dedupe     DedupeConfig     `mapstructure:"dedupe"`
	Merge      MergeConfig      `mapstructure:"merge"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	ItemTTL  time.Duration `mapstructure:"item_ttl"`
}

type ClassifierConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScorerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type IngestConfig struct {
	DegradedAfter int `mapstructure:"degraded_after"`
	FailingAfter  int `mapstructure:"failing_after"`
	DeadAfter     int `mapstructure:"dead_after"`
}

type AIConfig struct {
	BatchSize             int           `mapstructure:"batch_size"`
	CostPerItem           float64       `mapstructure:"cost_per_item"`
	StaleNoProgress       time.Duration `mapstructure:"stale_no_progress"`
	StaleWithProgress     time.Duration `mapstructure:"stale_with_progress"`
	MinFitScore           float64       `mapstructure:"min_fit_score"`
	AutoPublishFit        float64       `mapstructure:"auto_publish_fit"`
	AutoPublishConfidence float64       `mapstructure:"auto_publish_confidence"`
	ExtractConfidence     float64       `mapstructure:"extract_confidence"`
	JobRetention          time.Duration `mapstructure:"job_retention"`
}

type DedupeConfig struct {
	LikelyThreshold float64       `mapstructure:"likely_threshold"`
	MaybeThreshold  float64       `mapstructure:"maybe_threshold"`
	TimeWindow      time.Duration `mapstructure:"time_window"`
}

type MergeConfig struct {
	// Priorities maps source type to merge tie-break priority.
	Priorities map[string]int `mapstructure:"priorities"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/eventpool.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.item_ttl", time.Hour)
	v.SetDefault("classifier.base_url", "http://localhost:8091")
	v.SetDefault("classifier.model", "classifier-v2")
	v.SetDefault("classifier.timeout", 30*time.Second)
	v.SetDefault("scorer.base_url", "http://localhost:8092")
	v.SetDefault("scorer.model", "scorer-v1")
	v.SetDefault("scorer.timeout", 30*time.Second)
	v.SetDefault("ingest.degraded_after", 3)
	v.SetDefault("ingest.failing_after", 5)
	v.SetDefault("ingest.dead_after", 10)
	v.SetDefault("ai.batch_size", 50)
	v.SetDefault("ai.cost_per_item", 0.002)
	v.SetDefault("ai.stale_no_progress", 2*time.Minute)
	v.SetDefault("ai.stale_with_progress", 5*time.Minute)
	v.SetDefault("ai.min_fit_score", 0.3)
	v.SetDefault("ai.auto_publish_fit", 0.75)
	v.SetDefault("ai.auto_publish_confidence", 0.8)
	v.SetDefault("ai.extract_confidence", 0.7)
	v.SetDefault("ai.job_retention", 14*24*time.Hour)
	v.SetDefault("dedupe.likely_threshold", 0.8)
	v.SetDefault("dedupe.maybe_threshold", 0.55)
	v.SetDefault("dedupe.time_window", 48*time.Hour)
	v.SetDefault("merge.priorities", map[string]int{
		"manual":  100,
		"partner": 80,
		"feed":    50,
		"scraper": 20,
	})

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("classifier.api_key", "CLASSIFIER_API_KEY")
	v.BindEnv("classifier.base_url", "CLASSIFIER_BASE_URL")
	v.BindEnv("scorer.api_key", "SCORER_API_KEY")
	v.BindEnv("scorer.base_url", "SCORER_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

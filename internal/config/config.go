package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"daylight-matching-api/internal/matching"
)

// Config is the full service configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	Internal     InternalConfig     `yaml:"internal"`
	Logger       LoggerConfig       `yaml:"logger"`
	S3           S3Config           `yaml:"s3"`
	Notification NotificationConfig `yaml:"notification"`
	Matching     MatchingConfig     `yaml:"matching"`
	Jobs         JobsConfig         `yaml:"jobs"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"`
	BasePath        string        `yaml:"base_path"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// GetDSN returns DATABASE_URL when set, otherwise a key/value postgres DSN
func (d DatabaseConfig) GetDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a redis endpoint is configured
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Addr != ""
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type InternalConfig struct {
	APIKey string `yaml:"api_key"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Enabled reports whether attempt archiving is configured
func (s S3Config) Enabled() bool {
	return s.Bucket != "" && s.Region != ""
}

type NotificationConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MatchingConfig holds engine defaults and run limits
type MatchingConfig struct {
	RunTimeout              time.Duration          `yaml:"run_timeout"`
	LockTTL                 time.Duration          `yaml:"lock_ttl"`
	LockWait                time.Duration          `yaml:"lock_wait"`
	MatrixWorkers           int                    `yaml:"matrix_workers"`
	TargetGroupSize         int                    `yaml:"target_group_size"`
	MinGroupSize            int                    `yaml:"min_group_size"`
	MinGroupScore           float64                `yaml:"min_group_score"`
	ThresholdStepDown       float64                `yaml:"threshold_step_down"`
	MinThreshold            float64                `yaml:"min_threshold"`
	MaxAttemptsPerThreshold int                    `yaml:"max_attempts_per_threshold"`
	AcceptableThreshold     float64                `yaml:"acceptable_threshold"`
	MaxUnmatchedPercent     float64                `yaml:"max_unmatched_percent"`
	Scoring                 matching.ScoringConfig `yaml:"scoring"`
}

// Formation converts the configured defaults into an engine configuration
func (m MatchingConfig) Formation() matching.FormationConfig {
	return matching.FormationConfig{
		TargetGroupSize:         m.TargetGroupSize,
		MinGroupSize:            m.MinGroupSize,
		MinGroupScore:           m.MinGroupScore,
		ThresholdStepDown:       m.ThresholdStepDown,
		MinThreshold:            m.MinThreshold,
		MaxAttemptsPerThreshold: m.MaxAttemptsPerThreshold,
		AcceptableThreshold:     m.AcceptableThreshold,
		MaxUnmatchedPercent:     m.MaxUnmatchedPercent,
		MatrixWorkers:           m.MatrixWorkers,
		Scoring:                 m.Scoring,
	}
}

type JobsConfig struct {
	MetricsSchedule string `yaml:"metrics_schedule"`
}

// Default returns the built-in configuration used before the yaml file and env are applied
func Default() *Config {
	formation := matching.DefaultFormationConfig()
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Mode:            "debug",
			BasePath:        "/api",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			DBName:          "daylight_matching",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Logger: LoggerConfig{Level: "info"},
		S3:     S3Config{Prefix: "matching-attempts"},
		Notification: NotificationConfig{
			Timeout: 5 * time.Second,
		},
		Matching: MatchingConfig{
			RunTimeout:              30 * time.Second,
			LockTTL:                 60 * time.Second,
			LockWait:                3 * time.Second,
			MatrixWorkers:           formation.MatrixWorkers,
			TargetGroupSize:         formation.TargetGroupSize,
			MinGroupSize:            formation.MinGroupSize,
			MinGroupScore:           formation.MinGroupScore,
			ThresholdStepDown:       formation.ThresholdStepDown,
			MinThreshold:            formation.MinThreshold,
			MaxAttemptsPerThreshold: formation.MaxAttemptsPerThreshold,
			AcceptableThreshold:     formation.AcceptableThreshold,
			MaxUnmatchedPercent:     formation.MaxUnmatchedPercent,
			Scoring:                 formation.Scoring,
		},
		Jobs: JobsConfig{MetricsSchedule: "@every 1m"},
	}
}

// Load reads the yaml file at path (missing file is fine) and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Server.BasePath, "SERVER_BASE_PATH")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setBool(&cfg.Database.AutoMigrate, "DB_AUTO_MIGRATE")

	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Internal.APIKey, "INTERNAL_API_KEY")
	setString(&cfg.Logger.Level, "LOG_LEVEL")
	setString(&cfg.Notification.BaseURL, "NOTIFICATION_SERVICE_URL")

	setString(&cfg.S3.Bucket, "S3_BUCKET")
	setString(&cfg.S3.Region, "S3_REGION")
	setString(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3.SecretKey, "S3_SECRET_KEY")

	setDuration(&cfg.Matching.RunTimeout, "MATCHING_RUN_TIMEOUT")
	setDuration(&cfg.Matching.LockTTL, "MATCHING_LOCK_TTL")
	setDuration(&cfg.Matching.LockWait, "MATCHING_LOCK_WAIT")
	setInt(&cfg.Matching.MatrixWorkers, "MATCHING_MATRIX_WORKERS")
	setInt(&cfg.Matching.TargetGroupSize, "MATCHING_TARGET_GROUP_SIZE")
	setFloat(&cfg.Matching.MinGroupScore, "MATCHING_MIN_GROUP_SCORE")
	setFloat(&cfg.Matching.MinThreshold, "MATCHING_MIN_THRESHOLD")
}

// Validate checks the matching defaults so that a bad deployment fails at startup
func (c *Config) Validate() error {
	if c.Matching.RunTimeout <= 0 {
		return fmt.Errorf("matching.run_timeout must be positive")
	}
	if c.Matching.LockTTL < c.Matching.RunTimeout {
		return fmt.Errorf("matching.lock_ttl must be at least matching.run_timeout")
	}
	if err := c.Matching.Formation().Validate(); err != nil {
		return fmt.Errorf("matching defaults: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"projectflow/internal/notify"
	"projectflow/pkg/circuitbreaker"
	pkgconfig "projectflow/pkg/config"
)

// WorkflowConfig tunes the derived views.
type WorkflowConfig struct {
	UpcomingDays       int `yaml:"upcoming_days"`
	RecentProjects     int `yaml:"recent_projects"`
	UpcomingTasks      int `yaml:"upcoming_tasks"`
	IdempotencyTTLSecs int `yaml:"idempotency_ttl_seconds"`
}

// WorkerConfig tunes the activity worker.
type WorkerConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	MaxRetries  int64  `yaml:"max_retries"`
}

// OutboxConfig tunes re-publishing of events the broker refused.
type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MaxRetries int           `yaml:"max_retries"`
	BatchSize  int           `yaml:"batch_size"`
}

// NotifyConfig holds the defaults for new notifications.
type NotifyConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
	DefaultPosition string        `yaml:"default_position"`
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env      string                 `yaml:"env"`
	LogLevel string                 `yaml:"log_level"`
	Store    string                 `yaml:"store"` // postgres | memory
	Server   pkgconfig.ServerConfig `yaml:"server"`
	DB       pkgconfig.DBConfig     `yaml:"db"`
	MQ       pkgconfig.MQConfig     `yaml:"mq"`
	Redis    pkgconfig.RedisConfig  `yaml:"redis"`
	JWT      pkgconfig.JWTConfig    `yaml:"jwt"`
	Workflow WorkflowConfig         `yaml:"workflow"`
	Notify   NotifyConfig           `yaml:"notify"`
	Worker   WorkerConfig           `yaml:"worker"`
	Outbox   OutboxConfig           `yaml:"outbox"`
	Breaker  circuitbreaker.Config  `yaml:"breaker"`
}

// Default is used for every field the yaml files leave unset.
func Default() Config {
	return Config{
		Env:      "local",
		LogLevel: "info",
		Store:    StorePostgres,
		Server:   pkgconfig.ServerConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		MQ:       pkgconfig.MQConfig{Queue: "workflow.activity.q", Prefetch: 20},
		JWT:      pkgconfig.JWTConfig{TTL: 24 * time.Hour},
		Workflow: WorkflowConfig{UpcomingDays: 7, RecentProjects: 5, UpcomingTasks: 5, IdempotencyTTLSecs: 86400},
		Notify: NotifyConfig{
			DefaultDuration: notify.DefaultDuration,
			DefaultPosition: string(notify.DefaultPosition),
		},
		Worker:  WorkerConfig{MetricsPort: "9100", MaxRetries: 5},
		Outbox:  OutboxConfig{Interval: 5 * time.Second, MaxRetries: 5, BatchSize: 100},
		Breaker: circuitbreaker.DefaultConfig(),
	}
}

// Load reads base.yaml, the env overlay and secrets.env from dir, then
// applies the environment overrides.
func Load(env, dir string) (*Config, error) {
	if env == "" {
		env = pkgconfig.GetConfigEnv()
	}
	raw, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := pkgconfig.Decode(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// 环境变量覆盖（生产环境使用）
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	if level := pkgconfig.GetEnv("LOG_LEVEL", ""); level != "" {
		cfg.LogLevel = level
	}
	if store := pkgconfig.GetEnv("STORE", ""); store != "" {
		cfg.Store = store
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "server.port is required")
	}
	if c.Store != StorePostgres && c.Store != StoreMemory {
		problems = append(problems, fmt.Sprintf("store %q must be postgres or memory", c.Store))
	}
	if c.Workflow.UpcomingDays < 0 {
		problems = append(problems, "workflow.upcoming_days must not be negative")
	}
	if c.Notify.DefaultDuration < 0 {
		problems = append(problems, "notify.default_duration must not be negative")
	}
	if !notify.Position(c.Notify.DefaultPosition).Valid() {
		problems = append(problems, fmt.Sprintf("notify.default_position %q is not a known position", c.Notify.DefaultPosition))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IdempotencyTTL is how long an Idempotency-Key is remembered.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Workflow.IdempotencyTTLSecs) * time.Second
}

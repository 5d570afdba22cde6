// Package config provides configuration management for the TrotRank service.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Rating     RatingConfig     `mapstructure:"rating" validate:"required"`
	Guidance   GuidanceConfig   `mapstructure:"guidance" validate:"required"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// ServerConfig represents the HTTP API server configuration
type ServerConfig struct {
	Port                   int `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"required,gt=0"`
	HealthPort             int `mapstructure:"health_port" validate:"required,min=1,max=65535"`
}

// RatingConfig represents the rating pipeline parameters
type RatingConfig struct {
	CareerK          float64 `mapstructure:"career_k" validate:"required,gt=0"`
	CareerDecayDays  float64 `mapstructure:"career_decay_days" validate:"required,gt=0"`
	FormK            float64 `mapstructure:"form_k" validate:"required,gt=0"`
	FormDecayDays    float64 `mapstructure:"form_decay_days" validate:"required,gt=0"`
	ClassFactorMin   float64 `mapstructure:"class_factor_min" validate:"required,gt=0"`
	ClassFactorMax   float64 `mapstructure:"class_factor_max" validate:"required,gt=0"`
	ClassPurseRef    float64 `mapstructure:"class_purse_ref" validate:"required,gt=0"`
	SeedBase         float64 `mapstructure:"seed_base" validate:"required,gt=0"`
	SeedAlpha        float64 `mapstructure:"seed_alpha" validate:"required,gte=0"`
	SeedMin          float64 `mapstructure:"seed_min" validate:"required,gt=0"`
	SeedMax          float64 `mapstructure:"seed_max" validate:"required,gt=0"`
	PenaltyMaxRaces  int     `mapstructure:"penalty_max_races" validate:"required,gte=0"`
	PenaltyPoints    float64 `mapstructure:"penalty_points" validate:"required,gte=0"`
}

// GuidanceConfig represents the race guidance engine configuration
type GuidanceConfig struct {
	EloDivisor            float64 `mapstructure:"elo_divisor" validate:"required,gt=0"`
	BonusShoe             float64 `mapstructure:"bonus_shoe" validate:"gte=0"`
	BonusFavoriteTrack    float64 `mapstructure:"bonus_favorite_track" validate:"gte=0"`
	BonusFavoriteSpar     float64 `mapstructure:"bonus_favorite_spar" validate:"gte=0"`
	BonusTrackFavoriteSpar float64 `mapstructure:"bonus_track_favorite_spar" validate:"gte=0"`
	HandicapDivisor       float64 `mapstructure:"handicap_divisor" validate:"required,gt=0"`
	TierBasis             string  `mapstructure:"tier_basis" validate:"required,oneof=composite rating"`
	AWithin               float64 `mapstructure:"a_within" validate:"required,gt=0"`
	BWithin               float64 `mapstructure:"b_within" validate:"required,gt=0"`
	ClassTopK             int     `mapstructure:"class_top_k" validate:"required,gt=0"`
	FormEloEps            float64 `mapstructure:"form_elo_eps" validate:"gte=0"`
	PlusUpgradeMin        float64 `mapstructure:"plus_upgrade_min" validate:"gte=0"`
	SoftmaxBeta           float64 `mapstructure:"softmax_beta" validate:"gte=0"`
	TopNBase              int     `mapstructure:"top_n_base" validate:"required,gt=0"`
	TopNMax               int     `mapstructure:"top_n_max" validate:"required,gt=0"`
	ZGapMax               float64 `mapstructure:"z_gap_max" validate:"gte=0"`
	ProbCoverageMin       float64 `mapstructure:"prob_coverage_min" validate:"gte=0,lte=1"`
	CacheTTLSeconds       int     `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
}

// EvaluationConfig represents the evaluation harness and auto-tune configuration
type EvaluationConfig struct {
	StepDelayMillis int `mapstructure:"step_delay_millis" validate:"required,gt=0"`
	MaxGridCells    int `mapstructure:"max_grid_cells" validate:"required,gt=0"`
}

// SchedulerConfig represents scheduled recompute configuration
type SchedulerConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	RecomputeCron        string `mapstructure:"recompute_cron" validate:"required,cronexpr"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

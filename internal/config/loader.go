// Package config provides configuration management for the TrotRank service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// Environment variable placeholders in the YAML file (${VAR_NAME}) are expanded
// before parsing.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix("TROTRANK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// The config file is optional; defaults and environment variables cover a
// missing file.
func LoadWithDefaults(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix("TROTRANK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trotrank")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.health_port", 8081)

	v.SetDefault("rating.career_k", 16.0)
	v.SetDefault("rating.career_decay_days", 365.0)
	v.SetDefault("rating.form_k", 32.0)
	v.SetDefault("rating.form_decay_days", 45.0)
	v.SetDefault("rating.class_factor_min", 0.9)
	v.SetDefault("rating.class_factor_max", 1.4)
	v.SetDefault("rating.class_purse_ref", 200000.0)
	v.SetDefault("rating.seed_base", 1000.0)
	v.SetDefault("rating.seed_alpha", 25.0)
	v.SetDefault("rating.seed_min", 800.0)
	v.SetDefault("rating.seed_max", 1200.0)
	v.SetDefault("rating.penalty_max_races", 5)
	v.SetDefault("rating.penalty_points", 15.0)

	v.SetDefault("guidance.elo_divisor", 100.0)
	v.SetDefault("guidance.bonus_shoe", 0.25)
	v.SetDefault("guidance.bonus_favorite_track", 0.2)
	v.SetDefault("guidance.bonus_favorite_spar", 0.2)
	v.SetDefault("guidance.bonus_track_favorite_spar", 0.15)
	v.SetDefault("guidance.handicap_divisor", 40.0)
	v.SetDefault("guidance.tier_basis", "composite")
	v.SetDefault("guidance.a_within", 0.3)
	v.SetDefault("guidance.b_within", 2.0)
	v.SetDefault("guidance.class_top_k", 3)
	v.SetDefault("guidance.form_elo_eps", 20.0)
	v.SetDefault("guidance.plus_upgrade_min", 0.4)
	v.SetDefault("guidance.softmax_beta", 1.0)
	v.SetDefault("guidance.top_n_base", 3)
	v.SetDefault("guidance.top_n_max", 6)
	v.SetDefault("guidance.z_gap_max", 0.3)
	v.SetDefault("guidance.prob_coverage_min", 0.6)
	v.SetDefault("guidance.cache_ttl_seconds", 300)

	v.SetDefault("evaluation.step_delay_millis", 50)
	v.SetDefault("evaluation.max_grid_cells", 500)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.recompute_cron", "0 4 * * *")
	v.SetDefault("scheduler.sweep_interval_seconds", 300)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// ReloadFromEnv reloads the full configuration from the path named by
// TROTRANK_CONFIG_PATH, if set.
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv("TROTRANK_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}

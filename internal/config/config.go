// Package config loads the engine's construction-time knobs: user power
// ceilings, heartbeat/freshness timeouts and the cyclic period, the same
// viper-driven layered config pattern used elsewhere in this codebase's
// lineage (YAML file, environment overrides, coded defaults).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Engine carries the construction-time knobs for the protocol engine.
type Engine struct {
	UserMaxVoltage float64 `mapstructure:"user_max_voltage"`
	UserMaxCurrent float64 `mapstructure:"user_max_current"`
	UserMaxPower   float64 `mapstructure:"user_max_power"`

	HeartbeatTimeoutMs int `mapstructure:"heartbeat_timeout_ms"`
	FreshnessTimeoutMs int `mapstructure:"freshness_timeout_ms"`
	CyclicPeriodMs     int `mapstructure:"cyclic_period_ms"`
}

// HeartbeatTimeout returns the configured heartbeat timeout as a Duration.
func (e Engine) HeartbeatTimeout() time.Duration {
	return time.Duration(e.HeartbeatTimeoutMs) * time.Millisecond
}

// FreshnessTimeout returns the configured message-freshness timeout.
func (e Engine) FreshnessTimeout() time.Duration {
	return time.Duration(e.FreshnessTimeoutMs) * time.Millisecond
}

// CyclicPeriod returns the configured cyclic transmission period.
func (e Engine) CyclicPeriod() time.Duration {
	return time.Duration(e.CyclicPeriodMs) * time.Millisecond
}

// Configuration is the root of the loaded config tree.
type Configuration struct {
	Engine    Engine `mapstructure:"engine"`
	DBCPath   string `mapstructure:"dbc_path"`
	BoardPath string `mapstructure:"board_path"`
	Channel   string `mapstructure:"channel"`
}

// defaults matches the configuration knobs named in this codebase's
// external-interfaces documentation: user-max V/A/W and the three
// timing knobs.
func defaults(v *viper.Viper) {
	v.SetDefault("engine.user_max_voltage", 500.0)
	v.SetDefault("engine.user_max_current", 200.0)
	v.SetDefault("engine.user_max_power", 100000.0)
	v.SetDefault("engine.heartbeat_timeout_ms", 1500)
	v.SetDefault("engine.freshness_timeout_ms", 1000)
	v.SetDefault("engine.cyclic_period_ms", 100)
	v.SetDefault("dbc_path", "vcu.dbc")
	v.SetDefault("board_path", "boards.ini")
	v.SetDefault("channel", "")
}

// Load reads one configuration file: configPath if non-empty, otherwise the
// first "vcu-charger.yaml" found in $HOME, then in the current directory.
// VCU_CHARGER_-prefixed environment overrides apply on top, with dots in
// nested keys written as underscores (VCU_CHARGER_ENGINE_USER_MAX_CURRENT).
func Load(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults(v)

	v.SetEnvPrefix("VCU_CHARGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("vcu-charger")
		v.AddConfigPath("$HOME/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

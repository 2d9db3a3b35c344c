// Package config holds the engine's own process-level settings (log level,
// checkpoint directory, persistence directory, default timeouts) — distinct
// from the user-authored wizard.Config documents the composer produces.
// Built on a koanf Provider chain the way the teacher layers env over
// defaults.
package config

import (
	"strings"
	"time"

	"dario.cat/mergo"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// Settings is the ambient process configuration record. DefaultTimeout and
// DynamicOptionsTTL are loaded via core.ParseHumanDuration rather than a
// plain koanf/mapstructure duration hook, so an override can read either
// "5m" or "5 minutes".
type Settings struct {
	LogLevel          string        `koanf:"log_level"`
	LogJSON           bool          `koanf:"log_json"`
	CheckpointDir     string        `koanf:"checkpoint_dir"`
	PersistenceDir    string        `koanf:"persistence_dir"`
	DefaultTimeout    time.Duration `koanf:"-"`
	DynamicOptionsTTL time.Duration `koanf:"-"`
	MaxReportHistory  int           `koanf:"max_report_history"`
}

// Default returns the baseline Settings before any environment overlay.
func Default() *Settings {
	return &Settings{
		LogLevel:          "info",
		LogJSON:           false,
		CheckpointDir:     ".dev-wizard/checkpoints",
		PersistenceDir:    ".dev-wizard/answers",
		DefaultTimeout:    5 * time.Minute,
		DynamicOptionsTTL: 5 * time.Minute,
		MaxReportHistory:  50,
	}
}

// EnvPrefix is the prefix environment variables must carry to override
// Settings, e.g. DEV_WIZARD_LOG_LEVEL.
const EnvPrefix = "DEV_WIZARD_"

// Load builds Settings from defaults overlaid with DEV_WIZARD_*
// environment variables, using mergo.WithOverride the same way
// engine/core.MergeEnvLayers layers preset/defaults/command env blocks.
func Load() (*Settings, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			key = strings.ReplaceAll(key, "__", ".")
			return key, value
		},
	}), nil); err != nil {
		return nil, err
	}
	var overrides Settings
	if err := k.Unmarshal("", &overrides); err != nil {
		return nil, err
	}
	out := *Default()
	if err := mergo.Merge(&out, overrides, mergo.WithOverride); err != nil {
		return nil, err
	}

	if raw := k.String("default_timeout"); raw != "" {
		d, err := core.ParseHumanDuration(raw)
		if err != nil {
			return nil, err
		}
		out.DefaultTimeout = d
	}
	if raw := k.String("dynamic_options_ttl"); raw != "" {
		d, err := core.ParseHumanDuration(raw)
		if err != nil {
			return nil, err
		}
		out.DynamicOptionsTTL = d
	}
	return &out, nil
}

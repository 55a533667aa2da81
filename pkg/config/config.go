// Package config holds the mssim run configuration and loads it through
// viper from files, environment variables and flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
	"github.com/ChrisMcGann/MSSim/pkg/massspec"
)

// Config is the full run configuration.
type Config struct {
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	MassSpec   MassSpecConfig   `yaml:"mass_spec" mapstructure:"mass_spec"`
	Controller ControllerConfig `yaml:"controller" mapstructure:"controller"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// RunConfig selects the inputs and the simulated time span.
type RunConfig struct {
	MinTime float64 `yaml:"min_time" mapstructure:"min_time"`
	MaxTime float64 `yaml:"max_time" mapstructure:"max_time"`
	// Dataset is a YAML chemical dataset or an MSP library (by extension).
	Dataset string `yaml:"dataset" mapstructure:"dataset"`
	// Adducts and Mods are optional CSV tables extending the built-ins.
	Adducts string        `yaml:"adducts" mapstructure:"adducts"`
	Mods    string        `yaml:"mods" mapstructure:"mods"`
	Library LibraryConfig `yaml:"library" mapstructure:"library"`
	Sampler SamplerConfig `yaml:"sampler" mapstructure:"sampler"`
}

// LibraryConfig controls how MSP spectra become chemicals.
type LibraryConfig struct {
	DefaultRT    float64       `yaml:"default_rt" mapstructure:"default_rt"`
	MaxIntensity float64       `yaml:"max_intensity" mapstructure:"max_intensity"`
	Sigma        float64       `yaml:"sigma" mapstructure:"sigma"`
	Span         float64       `yaml:"span" mapstructure:"span"`
	Peaks        filter.Config `yaml:"peaks" mapstructure:"peaks"`
}

// Options converts the section into chem.LibraryOptions.
func (c LibraryConfig) Options() chem.LibraryOptions {
	return chem.LibraryOptions{
		DefaultRT:    c.DefaultRT,
		MaxIntensity: c.MaxIntensity,
		Sigma:        c.Sigma,
		Span:         c.Span,
	}
}

// SamplerConfig selects the duration model. With no path the constant
// durations are used for every schedule.
type SamplerConfig struct {
	Path        string  `yaml:"path" mapstructure:"path"`
	MS1Duration float64 `yaml:"ms1_duration" mapstructure:"ms1_duration"`
	MS2Duration float64 `yaml:"ms2_duration" mapstructure:"ms2_duration"`
}

// MassSpecConfig configures the scan engine.
type MassSpecConfig struct {
	Polarity      string  `yaml:"polarity" mapstructure:"polarity"`
	AddNoise      bool    `yaml:"add_noise" mapstructure:"add_noise"`
	Transition    string  `yaml:"transition" mapstructure:"transition"`
	GaussianSigma float64 `yaml:"gaussian_sigma" mapstructure:"gaussian_sigma"`
	FirstMass     float64 `yaml:"first_mass" mapstructure:"first_mass"`
	LastMass      float64 `yaml:"last_mass" mapstructure:"last_mass"`
}

// ParsedPolarity returns the ionisation mode.
func (c MassSpecConfig) ParsedPolarity() (core.Polarity, error) {
	return core.ParsePolarity(c.Polarity)
}

// DefaultScan returns the MS1 request acquired when the queue is empty.
func (c MassSpecConfig) DefaultScan() (*core.ScanParameters, error) {
	polarity, err := c.ParsedPolarity()
	if err != nil {
		return nil, err
	}
	return core.NewMS1Parameters(polarity, c.FirstMass, c.LastMass), nil
}

// Engine returns the scan engine options.
func (c MassSpecConfig) Engine() (massspec.Config, error) {
	def, err := c.DefaultScan()
	if err != nil {
		return massspec.Config{}, err
	}
	return massspec.Config{
		AddNoise:      c.AddNoise,
		Transition:    massspec.Transition(c.Transition),
		GaussianSigma: c.GaussianSigma,
		DefaultScan:   def,
	}, nil
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// OutputConfig selects where runs are stored.
type OutputConfig struct {
	// Path of the SQLite database. Empty keeps the run in memory only.
	Path        string        `yaml:"path" mapstructure:"path"`
	Description string        `yaml:"description" mapstructure:"description"`
	Peaks       filter.Config `yaml:"peaks" mapstructure:"peaks"`
}

// MetricsConfig enables the prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns a configuration that runs Top-10 for one hour.
func Default() Config {
	lib := chem.DefaultLibraryOptions()
	return Config{
		Run: RunConfig{
			MinTime: 0,
			MaxTime: 3600,
			Library: LibraryConfig{
				DefaultRT:    lib.DefaultRT,
				MaxIntensity: lib.MaxIntensity,
				Sigma:        lib.Sigma,
				Span:         lib.Span,
			},
			Sampler: SamplerConfig{
				MS1Duration: 0.6,
				MS2Duration: 0.2,
			},
		},
		MassSpec: MassSpecConfig{
			Polarity:      string(core.Positive),
			Transition:    string(massspec.Rectangular),
			GaussianSigma: 0.5,
			FirstMass:     core.DefaultFirstMass,
			LastMass:      core.DefaultLastMass,
		},
		Controller: DefaultControllerConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every section. Controller parameters are checked by
// building the configured controller.
func (c *Config) Validate() error {
	if c.Run.MaxTime <= c.Run.MinTime {
		return &core.ValidationError{Field: "run.max_time", Message: fmt.Sprintf("must exceed min_time %f, got %f", c.Run.MinTime, c.Run.MaxTime)}
	}
	if c.Run.Sampler.Path == "" && (c.Run.Sampler.MS1Duration <= 0 || c.Run.Sampler.MS2Duration <= 0) {
		return &core.ValidationError{Field: "run.sampler", Message: "constant durations must be positive when no sampler file is given"}
	}
	if err := c.Run.Library.Peaks.Validate(); err != nil {
		return fmt.Errorf("run.library.peaks: %w", err)
	}

	if _, err := c.MassSpec.ParsedPolarity(); err != nil {
		return &core.ValidationError{Field: "mass_spec.polarity", Message: err.Error()}
	}
	if c.MassSpec.LastMass <= c.MassSpec.FirstMass {
		return &core.ValidationError{Field: "mass_spec.last_mass", Message: fmt.Sprintf("must exceed first_mass %f, got %f", c.MassSpec.FirstMass, c.MassSpec.LastMass)}
	}
	switch massspec.Transition(c.MassSpec.Transition) {
	case massspec.Rectangular:
	case massspec.GaussianTransition:
		if c.MassSpec.GaussianSigma <= 0 {
			return &core.ValidationError{Field: "mass_spec.gaussian_sigma", Message: "must be positive for the gaussian transition"}
		}
	default:
		return &core.ValidationError{Field: "mass_spec.transition", Message: fmt.Sprintf("unknown transition '%s'", c.MassSpec.Transition)}
	}

	if _, err := c.Controller.Build(c.MassSpec, nil); err != nil {
		return err
	}

	if !logLevels[strings.ToLower(c.Logging.Level)] {
		return &core.ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level '%s'", c.Logging.Level)}
	}
	if err := c.Output.Peaks.Validate(); err != nil {
		return fmt.Errorf("output.peaks: %w", err)
	}
	return nil
}

// EnvPrefix prefixes environment overrides, e.g. MSSIM_RUN_MAX_TIME.
const EnvPrefix = "MSSIM"

// BindEnv makes v read MSSIM_* environment variables for nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v on top of Default and validates it.
// Every default key is registered with v so environment variables override
// keys the config file does not mention.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := SetDefaults(v, cfg); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every leaf of cfg as a viper default.
func SetDefaults(v *viper.Viper, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	setLeaves(v, "", tree)
	return nil
}

func setLeaves(v *viper.Viper, prefix string, node map[string]any) {
	for k, val := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := val.(map[string]any); ok {
			setLeaves(v, key, child)
			continue
		}
		v.SetDefault(key, val)
	}
}

// WriteYAML renders cfg as a config file.
func WriteYAML(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

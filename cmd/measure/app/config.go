package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akulov/labbench/internal/instrument/siggen"
)

// Duration wraps time.Duration with YAML support for values like "30ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Instruments InstrumentsConfig `yaml:"instruments"`
	Signal      SignalConfig      `yaml:"signal"`
	Capture     CaptureConfig     `yaml:"capture"`
	Reference   ReferenceConfig   `yaml:"reference"`
	Output      OutputConfig      `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level maps the configured log level name onto slog levels. Unknown names
// fall back to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InstrumentsConfig names the bench instrument endpoints
type InstrumentsConfig struct {
	ScopeAddr     string   `yaml:"scopeAddr"`
	ScopeSource   string   `yaml:"scopeSource"`
	ScopeTimeout  Duration `yaml:"scopeTimeout"`
	GeneratorPort string   `yaml:"generatorPort"`
	GeneratorBaud int      `yaml:"generatorBaud"`
	SMUAddr       string   `yaml:"smuAddr"`
}

// SignalConfig is the stimulus programmed into the generator
type SignalConfig struct {
	Shape        string  `yaml:"shape"`
	FrequencyHz  float64 `yaml:"frequencyHz"`
	AmplitudeVpp float64 `yaml:"amplitudeVpp"`
	OffsetV      float64 `yaml:"offsetV"`
	DutyCycle    float64 `yaml:"dutyCycle"`
}

// CaptureConfig tunes the averaging capture and the processing chain
type CaptureConfig struct {
	Passes      int      `yaml:"passes"`
	ReadDelay   Duration `yaml:"readDelay"`
	SettleDelay Duration `yaml:"settleDelay"`
	Window      int      `yaml:"window"`
}

// ReferenceConfig points at the reference signal CSV
type ReferenceConfig struct {
	File string `yaml:"file"`
}

// OutputConfig represents artifact and database settings
type OutputConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	SaveWaveforms bool   `yaml:"saveWaveforms"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Instruments.ScopeAddr == "" {
		return fmt.Errorf("instruments.scopeAddr is required")
	}
	if c.Instruments.GeneratorPort == "" {
		return fmt.Errorf("instruments.generatorPort is required")
	}
	if c.Reference.File == "" {
		return fmt.Errorf("reference.file is required")
	}
	if _, err := siggen.ParseShape(c.Signal.Shape); err != nil {
		return fmt.Errorf("signal.shape: %w", err)
	}
	if c.Signal.FrequencyHz <= 0 {
		return fmt.Errorf("signal.frequencyHz must be positive")
	}
	if c.Signal.DutyCycle < 0 || c.Signal.DutyCycle > 1 {
		return fmt.Errorf("signal.dutyCycle must be within [0, 1]")
	}
	return nil
}

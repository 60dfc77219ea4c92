// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/spf13/afero"
)

const (
	// DefaultFileName is looked up in the working directory when no config path is given.
	DefaultFileName = "lspbridge.yaml"
	// DefaultQueueSize bounds the UI queue.
	DefaultQueueSize = 256
	installDirName   = "lspbridge"
)

// UI modes.
const (
	UIModeAuto  = "auto"
	UIModeTUI   = "tui"
	UIModePlain = "plain"
)

var (
	// ErrReadConfig is returned when the config file exists but cannot be read.
	ErrReadConfig = errors.New("failed to read config file")
	// ErrInvalidYaml is returned when the config file is not valid YAML.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrInvalidConfig is returned when the decoded config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the complete lspbridge configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Progress      ProgressConfig      `yaml:"progress"`
	UI            UIConfig            `yaml:"ui"`
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig describes the language server executable and how to launch it.
type ServerConfig struct {
	Path       string   `yaml:"path"`
	Source     string   `yaml:"source"`
	Install    bool     `yaml:"install"`
	InstallDir string   `yaml:"install_dir"`
	Args       []string `yaml:"args"`
	WorkDir    string   `yaml:"work_dir"`
	Initialize bool     `yaml:"initialize"`
}

// NotificationsConfig configures the dispatcher.
type NotificationsConfig struct {
	MethodPrefix string `yaml:"method_prefix"`
}

// ProgressConfig configures the progress registry.
type ProgressConfig struct {
	PollInterval Duration `yaml:"poll_interval" validate:"gte=0"`
}

// UIConfig selects the host UI.
type UIConfig struct {
	Mode      string `yaml:"mode"       validate:"omitempty,oneof=auto tui plain"`
	QueueSize int    `yaml:"queue_size" validate:"gte=0"`
}

// LogConfig configures structured logging. An empty level keeps the level
// taken from the LSPBRIDGE_LOG_LEVEL environment variable.
type LogConfig struct {
	Level  string `yaml:"level"  validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"omitempty,oneof=pretty json"`
}

// MetricsConfig configures the debug HTTP server.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Install:    true,
			InstallDir: filepath.Join(os.TempDir(), installDirName),
			WorkDir:    ".",
			Initialize: true,
		},
		Notifications: NotificationsConfig{
			MethodPrefix: notify.DefaultMethodPrefix,
		},
		Progress: ProgressConfig{
			PollInterval: Duration(progress.DefaultPollInterval),
		},
		UI: UIConfig{
			Mode:      UIModeAuto,
			QueueSize: DefaultQueueSize,
		},
		Log: LogConfig{
			Format: ctxlog.FormatPretty,
		},
	}
}

// Load reads the YAML file at path on top of Default and validates the result.
// A missing file is not an error when path is DefaultFileName.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultFileName
	}

	data, err := afero.ReadFile(FsFactory(), path)

	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYaml, path, err)
		}

		ctxlog.Debug(ctx, "loaded config", "path", path)
	case errors.Is(err, os.ErrNotExist) && path == DefaultFileName:
		ctxlog.Debug(ctx, "no config file, using defaults", "path", path)
	default:
		return nil, errors.Join(ErrReadConfig, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags of the whole config.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	return nil
}

// LogOptions converts the log section for ctxlog.Configure.
func (c *Config) LogOptions() ctxlog.Options {
	return ctxlog.Options{
		Level:  c.Log.Level,
		Path:   c.Log.Path,
		Format: c.Log.Format,
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.InstallDir == "" {
		c.Server.InstallDir = def.Server.InstallDir
	}

	if c.Server.WorkDir == "" {
		c.Server.WorkDir = def.Server.WorkDir
	}

	if c.Progress.PollInterval == 0 {
		c.Progress.PollInterval = def.Progress.PollInterval
	}

	if c.UI.Mode == "" {
		c.UI.Mode = def.UI.Mode
	}

	if c.UI.QueueSize == 0 {
		c.UI.QueueSize = def.UI.QueueSize
	}

	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Duration is a time.Duration written as a Go duration string in YAML, e.g. "100ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *Duration) UnmarshalYAML(b []byte) error {
	var s string
	if err := yaml.Unmarshal(b, &s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(v)

	return nil
}

// MarshalYAML implements yaml.BytesMarshaler.
func (d Duration) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

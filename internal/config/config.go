// Package config handles application configuration, the settings file, and command-line argument parsing.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/joe/copy-new/internal/scan"
	"github.com/joe/copy-new/internal/watermark"
)

// Exported constants.
const (
	// DefaultExtension is the extension copied when none is configured
	DefaultExtension = "NEF"
	// DefaultPollInterval is how often watch mode rescans even without filesystem events
	DefaultPollInterval = 5 * time.Minute
	// DefaultSettingsFile is the settings file looked up next to the executable
	DefaultSettingsFile = "setting.txt"
	// DefaultWatermarkFile is the watermark file name used when no path is configured
	DefaultWatermarkFile = ".copy-new-last-id"
	// DefaultWorkers is the number of copy workers when none is configured
	DefaultWorkers = 4
)

// Exported variables.
var (
	ErrConflictingModes = errors.New("--watch and --schedule cannot be combined")
	ErrDestRequired     = errors.New("destination path is required")
	ErrDestNotDir       = errors.New("destination path is not a directory")
	ErrInvalidExtension = errors.New("invalid extension")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidWorkers   = errors.New("workers must be at least 1")
	ErrSourceMissing    = errors.New("source path does not exist")
	ErrSourceNotDir     = errors.New("source path is not a directory")
	ErrSourceRequired   = errors.New("source path is required")
)

// Mode selects how runs are triggered.
type Mode int

const (
	// ModeOnce performs a single run and exits
	ModeOnce Mode = iota
	// ModeWatch runs again whenever the source directory changes
	ModeWatch
	// ModeSchedule runs on a cron schedule
	ModeSchedule
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeOnce:
		return "once"
	case ModeWatch:
		return "watch"
	case ModeSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// Settings is the on-disk settings file. JSON is valid YAML, so a JSON
// settings file with the same keys loads unchanged.
type Settings struct {
	SrcDir    string `yaml:"src_dir"`
	DstDir    string `yaml:"dst_dir"`
	LogPath   string `yaml:"log_path"` // watermark file
	Extension string `yaml:"extension"`
	Workers   int    `yaml:"workers"`
	Store     string `yaml:"store"`
	Schedule  string `yaml:"schedule"`
	LogLevel  string `yaml:"log_level"`
}

// Config holds the application configuration.
// Flags left empty are filled from the settings file, then from defaults.
type Config struct {
	ConfigPath    string         `arg:"-c,--config" help:"Settings file (default: setting.txt next to the executable)"`
	SourcePath    string         `arg:"-s,--source" help:"Source directory path"`
	DestPath      string         `arg:"-d,--dest" help:"Destination directory path"`
	WatermarkPath string         `arg:"--watermark" help:"Watermark file or database path"`
	Extension     string         `arg:"-e,--ext" help:"File extension to copy (default: NEF)"`
	Workers       int            `arg:"-w,--workers" help:"Number of concurrent copy workers (default: 4)"`
	Store         watermark.Kind `arg:"--store" help:"Watermark store: auto|file|sqlite"`
	DryRun        bool           `arg:"-n,--dry-run" help:"List what would be copied without copying"`
	Watch         bool           `arg:"--watch" help:"Keep running and copy new files as they appear"`
	Schedule      string         `arg:"--schedule" help:"Run on a cron schedule, e.g. \"*/15 * * * *\""`
	PollInterval  time.Duration  `arg:"--poll" help:"Rescan interval in watch mode (default: 5m)"`
	TUI           bool           `arg:"--tui" help:"Show the interactive progress view"`
	LogFile       string         `arg:"--log-file" help:"Also write logs to this file"`
	LogLevel      string         `arg:"--log-level" help:"Log level: debug|info|warn|error (default: info)"`

	settingsLoaded string
}

// Description returns the program description for go-arg
func (Config) Description() string {
	return "Copies files whose numeric ID is above the last copied ID, in parallel, and remembers the new high-water mark"
}

// Version returns the version string for go-arg
func (Config) Version() string {
	return "copy-new 1.0.0"
}

// Level returns the configured log level.
func (cfg *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}

// Mode returns how runs are triggered.
func (cfg *Config) Mode() Mode {
	switch {
	case cfg.Watch:
		return ModeWatch
	case cfg.Schedule != "":
		return ModeSchedule
	default:
		return ModeOnce
	}
}

// SettingsFile returns the settings file that was applied, or "" if none was found.
func (cfg *Config) SettingsFile() string {
	return cfg.settingsLoaded
}

// DefaultConfigPath returns setting.txt in the executable's directory.
func DefaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultSettingsFile
	}

	return filepath.Join(filepath.Dir(exe), DefaultSettingsFile)
}

// LoadSettings reads the settings file at path.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied settings path
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	settings := &Settings{}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	return settings, nil
}

// ParseArgs parses args (without the program name) and returns the processed configuration.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}

	parser, err := arg.NewParser(arg.Config{Program: "copy-new"}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build argument parser: %w", err)
	}

	if err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}

	return PostProcessConfig(cfg)
}

// ParseFlags parses command-line flags and returns configuration
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	arg.MustParse(cfg)

	return PostProcessConfig(cfg)
}

// PostProcessConfig merges the settings file into cfg, applies defaults, and validates.
// An explicit --config that cannot be read is an error; a missing default settings file is not.
func PostProcessConfig(cfg *Config) (*Config, error) {
	settingsPath := cfg.ConfigPath
	explicit := settingsPath != ""

	if !explicit {
		settingsPath = DefaultConfigPath()
	}

	settings, err := LoadSettings(settingsPath)

	switch {
	case err == nil:
		if err := cfg.merge(settings); err != nil {
			return nil, fmt.Errorf("invalid settings %s: %w", settingsPath, err)
		}

		cfg.settingsLoaded = settingsPath
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.ValidatePaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the non-path options.
func (cfg *Config) Validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, cfg.Workers)
	}

	if !scan.NewExtensionFilter(cfg.Extension).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, cfg.Extension)
	}

	if cfg.Watch && cfg.Schedule != "" {
		return ErrConflictingModes
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, cfg.Schedule, err)
		}
	}

	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
		}
	}

	return nil
}

// ValidatePaths checks that the source is an existing directory and creates the destination if needed.
func (cfg *Config) ValidatePaths() error {
	if cfg.SourcePath == "" {
		return ErrSourceRequired
	}

	if cfg.DestPath == "" {
		return ErrDestRequired
	}

	sourceInfo, err := os.Stat(cfg.SourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSourceMissing, cfg.SourcePath)
	}

	if err != nil {
		return fmt.Errorf("cannot access source path: %w", err)
	}

	if !sourceInfo.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotDir, cfg.SourcePath)
	}

	err = os.MkdirAll(cfg.DestPath, 0o750)
	if err != nil {
		return fmt.Errorf("cannot create destination path %s: %w", cfg.DestPath, err)
	}

	destInfo, err := os.Stat(cfg.DestPath)
	if err != nil {
		return fmt.Errorf("cannot access destination path: %w", err)
	}

	if !destInfo.IsDir() {
		return fmt.Errorf("%w: %s", ErrDestNotDir, cfg.DestPath)
	}

	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}

	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.WatermarkPath == "" && cfg.DestPath != "" {
		cfg.WatermarkPath = filepath.Join(cfg.DestPath, DefaultWatermarkFile)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
}

// merge fills fields the flags left empty.
func (cfg *Config) merge(settings *Settings) error {
	fill := func(dst *string, value string) {
		if *dst == "" {
			*dst = value
		}
	}

	fill(&cfg.SourcePath, settings.SrcDir)
	fill(&cfg.DestPath, settings.DstDir)
	fill(&cfg.WatermarkPath, settings.LogPath)
	fill(&cfg.Extension, settings.Extension)
	fill(&cfg.Schedule, settings.Schedule)
	fill(&cfg.LogLevel, settings.LogLevel)

	if cfg.Workers == 0 {
		cfg.Workers = settings.Workers
	}

	if cfg.Store == watermark.KindAuto && settings.Store != "" {
		kind, err := watermark.ParseKind(settings.Store)
		if err != nil {
			return err
		}

		cfg.Store = kind
	}

	return nil
}

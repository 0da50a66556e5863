//nolint:varnamelen // Test files use idiomatic short variable names (t, tt, etc.)
package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/copy-new/internal/config"
	"github.com/joe/copy-new/internal/watermark"
)

func TestModeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode     config.Mode
		expected string
	}{
		{config.ModeOnce, "once"},
		{config.ModeWatch, "watch"},
		{config.ModeSchedule, "schedule"},
		{config.Mode(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.expected {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.expected)
		}
	}
}

func TestConfigDescription(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}

	if cfg.Description() == "" {
		t.Error("Description() should not be empty")
	}

	if cfg.Version() == "" {
		t.Error("Version() should not be empty")
	}
}

func TestLoadSettingsAcceptsJSON(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "setting.txt")
	json := `{"src_dir": "/mnt/card/DCIM", "dst_dir": "/photos/raw", "log_path": "/photos/last_id.txt"}`
	g.Expect(os.WriteFile(path, []byte(json), 0o600)).To(Succeed())

	settings, err := config.LoadSettings(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(settings.SrcDir).To(Equal("/mnt/card/DCIM"))
	g.Expect(settings.DstDir).To(Equal("/photos/raw"))
	g.Expect(settings.LogPath).To(Equal("/photos/last_id.txt"))
}

func TestLoadSettingsAcceptsYAML(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "src_dir: /in\ndst_dir: /out\nextension: raw\nworkers: 8\nstore: sqlite\nschedule: \"@hourly\"\n"
	g.Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	settings, err := config.LoadSettings(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(settings.Extension).To(Equal("raw"))
	g.Expect(settings.Workers).To(Equal(8))
	g.Expect(settings.Store).To(Equal("sqlite"))
	g.Expect(settings.Schedule).To(Equal("@hourly"))
}

func TestLoadSettingsRejectsGarbage(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "setting.txt")
	g.Expect(os.WriteFile(path, []byte("{not: [valid"), 0o600)).To(Succeed())

	_, err := config.LoadSettings(path)
	g.Expect(err).Should(HaveOccurred())
}

func TestPostProcessConfigMergesSettingsUnderFlags(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := t.TempDir()
	src := filepath.Join(root, "src")
	flagDest := filepath.Join(root, "flag-dest")
	g.Expect(os.Mkdir(src, 0o750)).To(Succeed())

	settingsPath := filepath.Join(root, "setting.txt")
	content := `{"src_dir": "` + src + `", "dst_dir": "` + filepath.Join(root, "file-dest") +
		`", "log_path": "` + filepath.Join(root, "last_id.txt") + `", "workers": 2}`
	g.Expect(os.WriteFile(settingsPath, []byte(content), 0o600)).To(Succeed())

	cfg, err := config.PostProcessConfig(&config.Config{
		ConfigPath: settingsPath,
		DestPath:   flagDest,
		Workers:    6,
	})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.SourcePath).To(Equal(src))
	g.Expect(cfg.DestPath).To(Equal(flagDest), "flags win over the settings file")
	g.Expect(cfg.Workers).To(Equal(6))
	g.Expect(cfg.WatermarkPath).To(Equal(filepath.Join(root, "last_id.txt")))
	g.Expect(cfg.Extension).To(Equal(config.DefaultExtension))
	g.Expect(cfg.PollInterval).To(Equal(config.DefaultPollInterval))
	g.Expect(cfg.SettingsFile()).To(Equal(settingsPath))
	g.Expect(cfg.Mode()).To(Equal(config.ModeOnce))

	info, err := os.Stat(flagDest)
	g.Expect(err).ShouldNot(HaveOccurred(), "destination is created when absent")
	g.Expect(info.IsDir()).To(BeTrue())
}

func TestPostProcessConfigDefaults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	cfg, err := config.PostProcessConfig(&config.Config{SourcePath: src, DestPath: dst})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Workers).To(Equal(config.DefaultWorkers))
	g.Expect(cfg.WatermarkPath).To(Equal(filepath.Join(dst, config.DefaultWatermarkFile)))
	g.Expect(cfg.Level()).To(Equal(slog.LevelInfo))
	g.Expect(cfg.Store).To(Equal(watermark.KindAuto))
}

func TestPostProcessConfigErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "src")
	file := filepath.Join(root, "plain.txt")

	if err := os.Mkdir(src, 0o750); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	badStore := filepath.Join(root, "bad-store.yaml")
	if err := os.WriteFile(badStore, []byte("store: postgres\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(root, "dst")

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr error
	}{
		{"missing source", config.Config{DestPath: dst}, config.ErrSourceRequired},
		{"missing dest", config.Config{SourcePath: src}, config.ErrDestRequired},
		{"source does not exist", config.Config{SourcePath: filepath.Join(root, "nope"), DestPath: dst}, config.ErrSourceMissing},
		{"source is a file", config.Config{SourcePath: file, DestPath: dst}, config.ErrSourceNotDir},
		{"negative workers", config.Config{SourcePath: src, DestPath: dst, Workers: -1}, config.ErrInvalidWorkers},
		{"watch and schedule", config.Config{SourcePath: src, DestPath: dst, Watch: true, Schedule: "@daily"}, config.ErrConflictingModes},
		{"bad schedule", config.Config{SourcePath: src, DestPath: dst, Schedule: "every tuesday"}, config.ErrInvalidSchedule},
		{"extension with glob metacharacters", config.Config{SourcePath: src, DestPath: dst, Extension: "["}, config.ErrInvalidExtension},
		{"bad log level", config.Config{SourcePath: src, DestPath: dst, LogLevel: "loud"}, config.ErrInvalidLogLevel},
		{"bad store in settings", config.Config{ConfigPath: badStore, SourcePath: src, DestPath: dst}, watermark.ErrUnknownKind},
		{"explicit settings missing", config.Config{ConfigPath: filepath.Join(root, "missing.txt"), SourcePath: src, DestPath: dst}, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg

			_, err := config.PostProcessConfig(&cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PostProcessConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := t.TempDir()
	dst := t.TempDir()

	cfg, err := config.ParseArgs([]string{
		"-s", src, "-d", dst, "-e", "raw", "-w", "3", "--store", "sqlite",
		"--watch", "--poll", "30s", "--log-level", "DEBUG", "--dry-run",
	})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Extension).To(Equal("raw"))
	g.Expect(cfg.Workers).To(Equal(3))
	g.Expect(cfg.Store).To(Equal(watermark.KindSQLite))
	g.Expect(cfg.Mode()).To(Equal(config.ModeWatch))
	g.Expect(cfg.PollInterval).To(Equal(30 * time.Second))
	g.Expect(cfg.Level()).To(Equal(slog.LevelDebug))
	g.Expect(cfg.DryRun).To(BeTrue())
}

func TestParseArgsRejectsUnknownStore(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := config.ParseArgs([]string{"-s", t.TempDir(), "-d", t.TempDir(), "--store", "redis"})
	g.Expect(err).Should(HaveOccurred())
}

func TestScheduleMode(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cfg, err := config.PostProcessConfig(&config.Config{
		SourcePath: t.TempDir(),
		DestPath:   t.TempDir(),
		Schedule:   "*/15 * * * *",
	})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Mode()).To(Equal(config.ModeSchedule))
}

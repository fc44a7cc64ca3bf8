package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	OrganisedDir string `toml:"organised_dir"`
	LogDir       string `toml:"log_dir"`
	LockDir      string `toml:"lock_dir"`
}

// Naming controls output file naming and finished-work codes.
type Naming struct {
	BrandPrefix    string `toml:"brand_prefix"`
	AudioFormat    string `toml:"audio_format"`
	StemFormat     string `toml:"stem_format"`
	VideoFormat    string `toml:"video_format"`
	SeparatorModel string `toml:"separator_model"`
}

// Engines holds argv templates for the external collaborators. Each argument
// may contain {placeholders} that the stage expands; no shell is involved.
type Engines struct {
	Downloader    []string `toml:"downloader"`
	Converter     []string `toml:"converter"`
	Separator     []string `toml:"separator"`
	Lyrics        []string `toml:"lyrics"`
	TitleRenderer []string `toml:"title_renderer"`
	Composer      []string `toml:"composer"`
}

// Lock configures the cross-process lock around the separation stage.
type Lock struct {
	Resource       string `toml:"resource"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	MaxWaitSeconds int    `toml:"max_wait_seconds"`
}

// Pipeline configures single-track runs.
type Pipeline struct {
	Stages   []string `toml:"stages"`
	Parallel int      `toml:"parallel"`
}

// Batch configures the two-phase ledger driver.
type Batch struct {
	Phase1Stages   []string `toml:"phase1_stages"`
	Phase2Stages   []string `toml:"phase2_stages"`
	JournalEnabled bool     `toml:"journal_enabled"`
	JournalPath    string   `toml:"journal_path"`
}

// Publish configures upload of finished work to S3-compatible storage.
type Publish struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Notifications contains configuration for ntfy or chat-webhook notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
	TrackPublished bool   `toml:"track_published"`
	StageFailures  bool   `toml:"stage_failures"`
	StaleLocks     bool   `toml:"stale_locks"`
	BatchSummary   bool   `toml:"batch_summary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for karaokeprep.
//
// Configuration sections by subsystem:
//   - Paths: per-track output, organised library, logs, lock records
//   - Naming: brand code prefix and output formats
//   - Engines: external collaborator command templates
//   - Lock: separation lock polling and wait bounds
//   - Pipeline: default stage order for single-track runs
//   - Batch: phase stage lists and the run journal
//   - Publish: object storage distribution
//   - Notifications: ntfy / webhook settings
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Naming        Naming        `toml:"naming"`
	Engines       Engines       `toml:"engines"`
	Lock          Lock          `toml:"lock"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Batch         Batch         `toml:"batch"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/karaokeprep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv merges a .env file into the process environment without
// overriding variables that are already set.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("karaokeprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
// OrganisedDir is deliberately left alone: sequence allocation requires the
// operator to create the destination root.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TrackDir returns the working directory for one track.
func (c *Config) TrackDir(baseName string) string {
	return filepath.Join(c.Paths.OutputDir, baseName)
}

// JournalPath returns the sqlite journal location.
func (c *Config) JournalPath() string {
	if strings.TrimSpace(c.Batch.JournalPath) != "" {
		return c.Batch.JournalPath
	}
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LogFilePath returns the rotating log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "karaokeprep.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"karaokeprep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The organised directory is created because sequence allocation requires it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "tracks")
	cfgVal.Paths.OrganisedDir = filepath.Join(base, "organised")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Lock.PollIntervalMS = 10
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Notifications.WebhookURL = ""

	if err := os.MkdirAll(cfgVal.Paths.OrganisedDir, 0o755); err != nil {
		t.Fatalf("mkdir organised dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBrandPrefix overrides the sequence code prefix.
func WithBrandPrefix(prefix string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Naming.BrandPrefix = prefix
	}
}

// WithJournal enables the run journal inside the test's log directory.
func WithJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.JournalEnabled = true
	}
}

// WithoutJournal disables the run journal.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.JournalEnabled = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default engine commands are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{
				b.cfg.Engines.Downloader[0],
				b.cfg.Engines.Converter[0],
				b.cfg.Engines.Separator[0],
				b.cfg.Engines.Lyrics[0],
				b.cfg.Engines.TitleRenderer[0],
				b.cfg.Engines.Composer[0],
			}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

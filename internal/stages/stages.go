package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"karaokeprep/internal/config"
	"karaokeprep/internal/deps"
	"karaokeprep/internal/engines"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/naming"
	"karaokeprep/internal/notifications"
	"karaokeprep/internal/publish"
	"karaokeprep/internal/stage"
)

// Stage names as used in configuration and ledgers.
const (
	NameAcquire    = "acquire"
	NameSeparate   = "separate"
	NameLyrics     = "lyrics"
	NameTitle      = "title"
	NameCompose    = "compose"
	NameFinalize   = "finalize"
	NameDistribute = "distribute"
)

const partialDirName = ".partial"

// Deps carries collaborators shared by the stages.
type Deps struct {
	Logger *slog.Logger
	// Runner replaces process execution for every engine when set.
	Runner engines.CommandRunner
	// Uploader is used by distribute when publishing is enabled. When nil and
	// publishing is enabled, a minio uploader is built from config.
	Uploader publish.Uploader
	Notifier notifications.Service
	// Codes is shared by every finalize stage filing into the same organised
	// directory. NewRegistry creates one when nil.
	Codes *CodeAllocator
	Now   func() time.Time
}

// NewRegistry builds every stage from cfg in the default order.
func NewRegistry(cfg *config.Config, d Deps) (*stage.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("stages: configuration required")
	}
	if d.Notifier == nil {
		d.Notifier = notifications.NewNoop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Codes == nil {
		d.Codes = NewCodeAllocator()
	}
	if cfg.Publish.Enabled && d.Uploader == nil {
		up, err := publish.NewMinio(cfg.Publish)
		if err != nil {
			return nil, err
		}
		d.Uploader = up
	}

	return stage.NewRegistry(
		NewAcquire(cfg, d),
		NewSeparate(cfg, d),
		NewLyrics(cfg, d),
		NewTitle(cfg, d),
		NewCompose(cfg, d),
		NewFinalize(cfg, d),
		NewDistribute(cfg, d),
	), nil
}

// Output descriptors shared between producers and consumers.
func originalOutput(cfg *config.Config) naming.Output {
	return naming.Output{Tag: naming.TagOriginal, Ext: cfg.Naming.AudioFormat}
}

func instrumentalOutput(cfg *config.Config) naming.Output {
	return naming.Output{Tag: naming.TagInstrumental, Variant: modelVariant(cfg), Ext: cfg.Naming.StemFormat}
}

func vocalsOutput(cfg *config.Config) naming.Output {
	return naming.Output{Tag: naming.TagVocals, Variant: modelVariant(cfg), Ext: cfg.Naming.StemFormat}
}

func lyricsOutput() naming.Output {
	return naming.Output{Tag: naming.TagLyrics, Ext: "lrc"}
}

func titleOutput() naming.Output {
	return naming.Output{Tag: naming.TagTitle, Ext: "mov"}
}

func finalOutput(cfg *config.Config) naming.Output {
	return naming.Output{Tag: naming.TagFinal, Ext: cfg.Naming.VideoFormat}
}

func brandCodeOutput() naming.Output {
	return naming.Output{Tag: naming.TagBrandCode, Ext: "txt"}
}

func publishedOutput() naming.Output {
	return naming.Output{Tag: naming.TagPublished, Ext: "json"}
}

// modelVariant drops the checkpoint extension so variants read as model names.
func modelVariant(cfg *config.Config) string {
	model := strings.TrimSpace(cfg.Naming.SeparatorModel)
	if ext := filepath.Ext(model); ext != "" {
		model = strings.TrimSuffix(model, ext)
	}
	return model
}

// engineStage holds the pieces common to stages backed by one external engine.
type engineStage struct {
	name   string
	deps   []string
	engine *engines.Engine
	logger *slog.Logger
}

func newEngineStage(name string, dependsOn []string, template []string, d Deps) engineStage {
	eng := engines.New(name, template)
	if d.Runner != nil {
		eng.WithCommandRunner(d.Runner)
	}
	return engineStage{
		name:   name,
		deps:   dependsOn,
		engine: eng,
		logger: logging.NewComponentLogger(d.Logger, "stage."+name),
	}
}

func (s *engineStage) Name() string { return s.name }

func (s *engineStage) DependsOn() []string {
	out := make([]string, len(s.deps))
	copy(out, s.deps)
	return out
}

// HealthCheck reports whether the engine binary resolves on PATH.
func (s *engineStage) HealthCheck(context.Context) stage.Health {
	status := deps.CheckBinaries([]deps.Requirement{{Name: s.name, Command: s.engine.Binary()}})[0]
	if !status.Available {
		return stage.Unhealthy(s.name, status.Detail)
	}
	return stage.Healthy(s.name)
}

// runEngine binds each target placeholder to a path under the partial
// directory, runs the engine, and renames non-empty results into place.
func (s *engineStage) runEngine(ctx context.Context, job *stage.Job, vars engines.Vars, targets map[string]string) error {
	logger := logging.WithContext(ctx, s.logger)
	partialDir := filepath.Join(job.Dir, partialDirName)
	if err := os.MkdirAll(partialDir, 0o755); err != nil {
		return fmt.Errorf("%s: create partial directory: %w", s.name, err)
	}

	merged := engines.Vars{
		"artist":     job.Identity.Artist,
		"title":      job.Identity.Title,
		"base_name":  job.BaseName(),
		"output_dir": job.Dir,
	}
	for k, v := range vars {
		merged[k] = v
	}
	staged := make(map[string]string, len(targets))
	for key, final := range targets {
		tmp := filepath.Join(partialDir, filepath.Base(final))
		_ = os.Remove(tmp)
		staged[final] = tmp
		merged[key] = tmp
	}

	started := time.Now()
	logger.Debug("engine starting",
		logging.String("engine", s.engine.Binary()),
		logging.Int("outputs", len(targets)),
	)
	if err := s.engine.Run(ctx, merged); err != nil {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
		return err
	}

	for final, tmp := range staged {
		info, err := os.Stat(tmp)
		if err != nil || info.Size() == 0 {
			continue
		}
		if err := os.Rename(tmp, final); err != nil {
			return fmt.Errorf("%s: promote %s: %w", s.name, filepath.Base(final), err)
		}
	}
	_ = os.Remove(partialDir)

	logger.Info("engine finished",
		logging.String("engine", s.engine.Binary()),
		logging.Duration("duration", time.Since(started)),
	)
	return nil
}

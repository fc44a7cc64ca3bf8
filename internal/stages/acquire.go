package stages

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"karaokeprep/internal/config"
	"karaokeprep/internal/engines"
	"karaokeprep/internal/fileutil"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/services"
	"karaokeprep/internal/stage"
)

// Acquire produces the working copy of the source audio.
//
// URL inputs go through the downloader, local files with the working
// extension are copied verbatim, and anything else goes through the converter.
type Acquire struct {
	engineStage
	cfg        *config.Config
	downloader *engines.Engine
}

// NewAcquire constructs the acquisition stage.
func NewAcquire(cfg *config.Config, d Deps) *Acquire {
	a := &Acquire{
		engineStage: newEngineStage(NameAcquire, nil, cfg.Engines.Converter, d),
		cfg:         cfg,
		downloader:  engines.New("downloader", cfg.Engines.Downloader),
	}
	if d.Runner != nil {
		a.downloader.WithCommandRunner(d.Runner)
	}
	return a
}

func (a *Acquire) Outputs(job *stage.Job) []string {
	return []string{job.Path(originalOutput(a.cfg))}
}

func (a *Acquire) Execute(ctx context.Context, job *stage.Job) error {
	input := strings.TrimSpace(job.Input)
	if input == "" {
		return services.Wrap(services.ErrValidation, NameAcquire, "input", "no input reference for track", nil)
	}
	target := job.Path(originalOutput(a.cfg))
	format := a.cfg.Naming.AudioFormat
	logger := logging.WithContext(ctx, a.logger)

	if IsRemote(input) {
		logger.Info("acquiring from remote source", logging.Args(logging.DecisionAttrs("acquire_source", "download", "url input")...)...)
		saved := a.engineStage
		saved.engine = a.downloader
		return saved.runEngine(ctx, job, engines.Vars{"input": input, "format": format}, map[string]string{"output": target})
	}

	if _, err := os.Stat(input); err != nil {
		return services.Wrap(services.ErrNotFound, NameAcquire, "stat input", input, err)
	}
	if strings.EqualFold(strings.TrimPrefix(filepath.Ext(input), "."), format) {
		logger.Info("acquiring local copy", logging.Args(logging.DecisionAttrs("acquire_source", "copy", "input already "+format)...)...)
		return copyInto(input, target, job.Dir)
	}
	logger.Info("acquiring via converter", logging.Args(logging.DecisionAttrs("acquire_source", "convert", "input extension differs from "+format)...)...)
	return a.runEngine(ctx, job, engines.Vars{"input": input, "format": format}, map[string]string{"output": target})
}

// copyInto copies src through the partial directory so target only appears
// once complete.
func copyInto(src, target, trackDir string) error {
	partialDir := filepath.Join(trackDir, partialDirName)
	if err := os.MkdirAll(partialDir, 0o755); err != nil {
		return fmt.Errorf("acquire: create partial directory: %w", err)
	}
	tmp := filepath.Join(partialDir, filepath.Base(target))
	if err := fileutil.CopyFileVerified(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrTransient, NameAcquire, "copy", src, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("acquire: promote copy: %w", err)
	}
	_ = os.Remove(partialDir)
	return nil
}

// HealthCheck requires the converter; the downloader is reported only when
// missing since local inputs do not need it.
func (a *Acquire) HealthCheck(ctx context.Context) stage.Health {
	if h := a.engineStage.HealthCheck(ctx); !h.Ready {
		return h
	}
	if a.downloader.Binary() == "" {
		return stage.Unhealthy(NameAcquire, "downloader command not configured")
	}
	return stage.Healthy(NameAcquire)
}

// IsRemote reports whether input is an http(s) URL.
func IsRemote(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

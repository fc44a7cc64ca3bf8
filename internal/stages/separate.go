package stages

import (
	"context"

	"karaokeprep/internal/config"
	"karaokeprep/internal/engines"
	"karaokeprep/internal/stage"
)

// Separate splits the original audio into instrumental and vocal stems. It
// holds the configured resource lock while the separator runs.
type Separate struct {
	engineStage
	cfg *config.Config
}

// NewSeparate constructs the separation stage.
func NewSeparate(cfg *config.Config, d Deps) *Separate {
	return &Separate{
		engineStage: newEngineStage(NameSeparate, []string{NameAcquire}, cfg.Engines.Separator, d),
		cfg:         cfg,
	}
}

func (s *Separate) Outputs(job *stage.Job) []string {
	return []string{
		job.Path(instrumentalOutput(s.cfg)),
		job.Path(vocalsOutput(s.cfg)),
	}
}

// ResourceName marks the stage exclusive.
func (s *Separate) ResourceName() string {
	return s.cfg.Lock.Resource
}

func (s *Separate) Execute(ctx context.Context, job *stage.Job) error {
	vars := engines.Vars{
		"input":  job.Path(originalOutput(s.cfg)),
		"model":  s.cfg.Naming.SeparatorModel,
		"format": s.cfg.Naming.StemFormat,
	}
	return s.runEngine(ctx, job, vars, map[string]string{
		"instrumental": job.Path(instrumentalOutput(s.cfg)),
		"vocals":       job.Path(vocalsOutput(s.cfg)),
	})
}

package stages

import (
	"context"

	"karaokeprep/internal/config"
	"karaokeprep/internal/engines"
	"karaokeprep/internal/stage"
)

// Compose renders the final karaoke video from the instrumental stem, the
// lyrics, and the title card.
type Compose struct {
	engineStage
	cfg *config.Config
}

func NewCompose(cfg *config.Config, d Deps) *Compose {
	return &Compose{
		engineStage: newEngineStage(NameCompose, []string{NameSeparate, NameLyrics, NameTitle}, cfg.Engines.Composer, d),
		cfg:         cfg,
	}
}

func (c *Compose) Outputs(job *stage.Job) []string {
	return []string{job.Path(finalOutput(c.cfg))}
}

func (c *Compose) Execute(ctx context.Context, job *stage.Job) error {
	instrumental := job.Path(instrumentalOutput(c.cfg))
	vars := engines.Vars{
		"input":        instrumental,
		"instrumental": instrumental,
		"vocals":       job.Path(vocalsOutput(c.cfg)),
		"lyrics":       job.Path(lyricsOutput()),
		"title_card":   job.Path(titleOutput()),
		"format":       c.cfg.Naming.VideoFormat,
	}
	return c.runEngine(ctx, job, vars, map[string]string{"output": job.Path(finalOutput(c.cfg))})
}

package stages

import (
	"context"

	"karaokeprep/internal/config"
	"karaokeprep/internal/stage"
)

// Title renders the title card. It needs only the track identity.
type Title struct {
	engineStage
}

func NewTitle(cfg *config.Config, d Deps) *Title {
	return &Title{engineStage: newEngineStage(NameTitle, nil, cfg.Engines.TitleRenderer, d)}
}

func (t *Title) Outputs(job *stage.Job) []string {
	return []string{job.Path(titleOutput())}
}

func (t *Title) Execute(ctx context.Context, job *stage.Job) error {
	return t.runEngine(ctx, job, nil, map[string]string{"output": job.Path(titleOutput())})
}

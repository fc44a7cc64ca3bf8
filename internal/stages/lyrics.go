package stages

import (
	"context"

	"karaokeprep/internal/config"
	"karaokeprep/internal/engines"
	"karaokeprep/internal/stage"
)

// Lyrics produces synchronized lyrics from the original audio.
type Lyrics struct {
	engineStage
	cfg *config.Config
}

func NewLyrics(cfg *config.Config, d Deps) *Lyrics {
	return &Lyrics{
		engineStage: newEngineStage(NameLyrics, []string{NameAcquire}, cfg.Engines.Lyrics, d),
		cfg:         cfg,
	}
}

func (l *Lyrics) Outputs(job *stage.Job) []string {
	return []string{job.Path(lyricsOutput())}
}

func (l *Lyrics) Execute(ctx context.Context, job *stage.Job) error {
	return l.runEngine(ctx, job,
		engines.Vars{"input": job.Path(originalOutput(l.cfg))},
		map[string]string{"output": job.Path(lyricsOutput())},
	)
}

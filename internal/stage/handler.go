package stage

import (
	"context"
	"path/filepath"

	"karaokeprep/internal/naming"
)

// Job is the per-track input every stage receives. It is built once per
// pipeline run and never mutated by stages; all stage state lives on disk.
type Job struct {
	Identity naming.Identity
	// Input is the acquisition reference: a local path or a URL.
	Input string
	// Dir is the track's working directory, {output_dir}/{base_name}.
	Dir string
}

// NewJob builds a Job rooted at outputDir.
func NewJob(id naming.Identity, input, outputDir string) *Job {
	return &Job{
		Identity: id,
		Input:    input,
		Dir:      filepath.Join(outputDir, id.BaseName()),
	}
}

// BaseName returns the sanitized track name.
func (j *Job) BaseName() string {
	return j.Identity.BaseName()
}

// Path resolves one of the track's named outputs inside Dir.
func (j *Job) Path(o naming.Output) string {
	return o.Path(j.Dir, j.BaseName())
}

// Handler describes the contract the pipeline needs from each stage.
type Handler interface {
	// Name is the configuration name of the stage.
	Name() string
	// Outputs lists every file the stage produces for job. Existence of all
	// of them means the stage is done.
	Outputs(job *Job) []string
	// DependsOn names stages whose outputs this stage consumes.
	DependsOn() []string
	Execute(ctx context.Context, job *Job) error
	HealthCheck(ctx context.Context) Health
}

// Exclusive is implemented by stages that must hold a cross-process resource
// lock while executing.
type Exclusive interface {
	ResourceName() string
}

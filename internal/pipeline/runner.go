package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"karaokeprep/internal/logging"
	"karaokeprep/internal/notifications"
	"karaokeprep/internal/resourcelock"
	"karaokeprep/internal/services"
	"karaokeprep/internal/stage"
	"karaokeprep/internal/stagegate"
)

// Options configures a Runner.
type Options struct {
	Logger   *slog.Logger
	Locker   *resourcelock.Locker
	Notifier notifications.Service
	DryRun   bool
	Force    bool
}

// Runner executes stages for tracks.
type Runner struct {
	logger   *slog.Logger
	locker   *resourcelock.Locker
	notifier notifications.Service
	dryRun   bool
	force    bool
}

// New constructs a Runner. A nil Locker is replaced with one using the
// system temp directory.
func New(opts Options) *Runner {
	r := &Runner{
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		locker:   opts.Locker,
		notifier: opts.Notifier,
		dryRun:   opts.DryRun,
		force:    opts.Force,
	}
	if r.locker == nil {
		r.locker = resourcelock.New(resourcelock.Options{Logger: opts.Logger})
	}
	if r.notifier == nil {
		r.notifier = notifications.NewNoop()
	}
	return r
}

// DryRun reports whether the runner only plans.
func (r *Runner) DryRun() bool { return r.dryRun }

// Run executes handlers in order against track and returns it.
func (r *Runner) Run(ctx context.Context, track *Track, handlers []stage.Handler) *Track {
	if track.RequestID == "" {
		track.RequestID = uuid.NewString()
	}
	track.Stages = make([]string, 0, len(handlers))
	for _, h := range handlers {
		track.Stages = append(track.Stages, h.Name())
	}
	track.Started = time.Now()
	defer func() { track.Finished = time.Now() }()

	ctx = services.WithRequestID(ctx, track.RequestID)
	ctx = services.WithTrack(ctx, track.Job.BaseName())
	logger := logging.WithContext(ctx, r.logger)

	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("stages", strings.Join(track.Stages, ",")),
		logging.Bool("dry_run", r.dryRun),
		logging.Bool("force", r.force),
	)

	var setupErr error
	if !r.dryRun {
		if err := os.MkdirAll(track.Job.Dir, 0o755); err != nil {
			setupErr = services.Wrap(services.ErrConfiguration, "pipeline", "create track directory", track.Job.Dir, err)
		}
	}

	for _, h := range handlers {
		name := h.Name()
		stageCtx := services.WithStage(ctx, name)
		stageLogger := logging.WithContext(stageCtx, r.logger)

		if setupErr != nil {
			track.record(Failed(name, setupErr))
			continue
		}
		if err := ctx.Err(); err != nil {
			track.record(Failed(name, err))
			stageLogger.Info("stage not started; run cancelled", logging.Error(err))
			continue
		}
		track.record(r.runStage(stageCtx, stageLogger, track, h))
	}

	counts := track.Counts()
	logger.Info("pipeline finished",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("skipped", counts[KindSkipped]),
		logging.Int("succeeded", counts[KindSucceeded]),
		logging.Int("failed", counts[KindFailed]),
		logging.Int("planned", counts[KindPlanned]),
		logging.Duration("duration", time.Since(track.Started)),
	)
	return track
}

func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, track *Track, h stage.Handler) Result {
	name := h.Name()
	job := track.Job

	for _, dep := range h.DependsOn() {
		prior, ok := track.Result(dep)
		if !ok || prior.Kind != KindFailed {
			continue
		}
		err := services.Wrap(services.ErrUpstreamFailure, name, "dependency", fmt.Sprintf("%s failed", dep), nil)
		logger.Info("stage decision", logging.Args(logging.DecisionAttrs("stage_gate", "upstream_failed", dep+" failed in this run")...)...)
		return Failed(name, err)
	}

	outputs := h.Outputs(job)
	done := stagegate.IsDone(outputs)

	switch {
	case r.dryRun && done && !r.force:
		logger.Info("would skip stage", logging.Args(logging.DecisionAttrs("stage_gate", "would_skip", "outputs present")...)...)
		return Skipped(name, outputs)
	case r.dryRun:
		reason := "outputs missing"
		if done {
			reason = "force"
		}
		logger.Info("would run stage", logging.Args(append(
			logging.DecisionAttrs("stage_gate", "would_run", reason),
			logging.Int("missing_outputs", len(stagegate.Missing(outputs))),
		)...)...)
		return Planned(name)
	case done && !r.force:
		logger.Info("stage skipped", logging.Args(logging.DecisionAttrs("stage_gate", "skip", "outputs present")...)...)
		return Skipped(name, outputs)
	}

	reason := "outputs missing"
	if done {
		reason = "force"
	}
	logger.Info("stage started", logging.Args(append(
		logging.DecisionAttrs("stage_gate", "run", reason),
		logging.String(logging.FieldEventType, "stage_start"),
	)...)...)

	started := time.Now()
	result := r.execute(ctx, logger, job, h, outputs)
	result.Duration = time.Since(started)

	if result.Kind == KindFailed {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Duration("duration", result.Duration),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "fix the cause and rerun; completed stages are skipped"),
		)
		r.notify(ctx, logger, notifications.EventStageFailed, notifications.Payload{
			"track": job.BaseName(),
			"stage": name,
			"error": services.Summary(result.Err),
		})
		return result
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", result.Duration),
		logging.Int("outputs", len(outputs)),
	)
	return result
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, job *stage.Job, h stage.Handler, outputs []string) Result {
	name := h.Name()
	stale := false

	if exclusive, ok := h.(stage.Exclusive); ok {
		resource := exclusive.ResourceName()
		handle, err := r.locker.Acquire(ctx, resource)
		if err != nil {
			return Failed(name, services.Wrap(services.ErrTransient, name, "acquire lock", resource, err))
		}
		defer func() {
			if err := handle.Release(); err != nil {
				logger.Warn("resource lock release failed", logging.String(logging.FieldResource, resource), logging.Error(err))
			}
		}()
		if handle.StaleRecovered {
			stale = true
			r.notify(ctx, logger, notifications.EventStaleLock, notifications.Payload{
				"resource": resource,
				"pid":      handle.Previous.OwnerPID,
			})
		}
	}

	if err := h.Execute(ctx, job); err != nil {
		res := Failed(name, err)
		res.StaleLockRecovered = stale
		return res
	}

	if missing := stagegate.Missing(outputs); len(missing) > 0 {
		detail := "outputs missing after execution: " + strings.Join(missing, ", ")
		res := Failed(name, services.Wrap(services.ErrExternalTool, name, "verify outputs", detail, nil))
		res.StaleLockRecovered = stale
		return res
	}

	res := Succeeded(name, outputs)
	res.StaleLockRecovered = stale
	return res
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

// RunMany runs independent jobs with at most parallel tracks in flight and
// returns tracks in job order. Exclusive stages remain serialized by the lock.
func (r *Runner) RunMany(ctx context.Context, jobs []*stage.Job, handlers []stage.Handler, parallel int) []*Track {
	if parallel <= 0 {
		parallel = 1
	}
	tracks := make([]*Track, len(jobs))
	for i, job := range jobs {
		tracks[i] = NewTrack(job)
	}

	sem := semaphore.NewWeighted(int64(parallel))
	var wg sync.WaitGroup
	for i := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(jobs); j++ {
				markCancelled(tracks[j], handlers, err)
			}
			break
		}
		wg.Add(1)
		go func(track *Track) {
			defer wg.Done()
			defer sem.Release(1)
			r.Run(ctx, track, handlers)
		}(tracks[i])
	}
	wg.Wait()
	return tracks
}

func markCancelled(track *Track, handlers []stage.Handler, err error) {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("not started: %w", err)
	}
	for _, h := range handlers {
		track.Stages = append(track.Stages, h.Name())
		track.record(Failed(h.Name(), err))
	}
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"karaokeprep/internal/config"
	"karaokeprep/internal/journal"
	"karaokeprep/internal/ledger"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/naming"
	"karaokeprep/internal/notifications"
	"karaokeprep/internal/pipeline"
	"karaokeprep/internal/services"
	"karaokeprep/internal/stage"
)

// Phase selects which half of the workflow runs.
type Phase int

const (
	Phase1 Phase = iota + 1
	Phase2
)

func (p Phase) String() string {
	switch p {
	case Phase1:
		return journal.PhasePrep
	case Phase2:
		return journal.PhaseRender
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Eligible reports whether the phase picks up a row in status s.
func (p Phase) Eligible(s ledger.Status) bool {
	switch p {
	case Phase1:
		return s == ledger.StatusUploaded
	case Phase2:
		return s == ledger.StatusPrepComplete || s == ledger.StatusUploaded
	default:
		return false
	}
}

// Outcome maps a pipeline result to the row's next status.
func (p Phase) Outcome(failed bool) ledger.Status {
	switch {
	case p == Phase1 && failed:
		return ledger.StatusPrepFailed
	case p == Phase1:
		return ledger.StatusPrepComplete
	case failed:
		return ledger.StatusRenderFailed
	default:
		return ledger.StatusCompleted
	}
}

// Summary tallies one phase invocation.
type Summary struct {
	Phase     string
	RunID     string
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Options configures a Driver.
type Options struct {
	Config     *config.Config
	LedgerPath string
	Runner     *pipeline.Runner
	Registry   *stage.Registry
	// Journal is optional.
	Journal  *journal.Store
	Notifier notifications.Service
	Logger   *slog.Logger
	// OnItemSaved runs after a row's status has been persisted.
	OnItemSaved func(item *ledger.Item)
}

// Driver runs batch phases against one ledger file.
type Driver struct {
	cfg         *config.Config
	ledgerPath  string
	runner      *pipeline.Runner
	registry    *stage.Registry
	journal     *journal.Store
	notifier    notifications.Service
	logger      *slog.Logger
	onItemSaved func(item *ledger.Item)
}

// NewDriver validates options and builds a Driver.
func NewDriver(opts Options) (*Driver, error) {
	if opts.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "init", "configuration required", nil)
	}
	if strings.TrimSpace(opts.LedgerPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "init", "ledger path required", nil)
	}
	if opts.Runner == nil || opts.Registry == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "init", "pipeline runner and stage registry required", nil)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &Driver{
		cfg:         opts.Config,
		ledgerPath:  opts.LedgerPath,
		runner:      opts.Runner,
		registry:    opts.Registry,
		journal:     opts.Journal,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(opts.Logger, "batch"),
		onItemSaved: opts.OnItemSaved,
	}, nil
}

// RunPhase1 prepares every Uploaded row.
func (d *Driver) RunPhase1(ctx context.Context) (Summary, error) {
	return d.Run(ctx, Phase1)
}

// RunPhase2 renders and distributes every PrepComplete or Uploaded row.
func (d *Driver) RunPhase2(ctx context.Context) (Summary, error) {
	return d.Run(ctx, Phase2)
}

func (d *Driver) stagesFor(phase Phase) []string {
	if phase == Phase1 {
		return d.cfg.Batch.Phase1Stages
	}
	return d.cfg.Batch.Phase2Stages
}

// Run executes one phase. It returns ctx.Err() when cancelled; rows already
// saved stay saved and the row in flight keeps its previous status.
func (d *Driver) Run(ctx context.Context, phase Phase) (Summary, error) {
	summary := Summary{Phase: phase.String(), RunID: uuid.NewString()}
	started := time.Now()
	ctx = services.WithPhase(ctx, phase.String())
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldCorrelationID, summary.RunID))
	dryRun := d.runner.DryRun()

	handlers, err := d.registry.Select(d.stagesFor(phase))
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "batch", "resolve stages", phase.String(), err)
	}

	if !dryRun {
		lock, err := ledger.Lock(d.ledgerPath)
		if err != nil {
			return summary, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("ledger unlock failed", logging.Error(err))
			}
		}()
	}

	book, err := ledger.Load(d.ledgerPath)
	if err != nil {
		return summary, err
	}

	logger.Info("batch phase started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String("ledger", d.ledgerPath),
		logging.Int("rows", len(book.Items)),
		logging.Bool("dry_run", dryRun),
	)

	for _, item := range book.Items {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(started)
			logger.Warn("batch phase interrupted", logging.Int("row", item.Row), logging.Error(err))
			return summary, err
		}
		if err := d.processItem(ctx, logger, phase, book, item, handlers, dryRun, &summary); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("batch phase finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration),
	)
	if !dryRun && summary.Processed > 0 {
		if err := d.notifier.Publish(ctx, notifications.EventBatchCompleted, notifications.Payload{
			"phase":     summary.Phase,
			"processed": summary.Processed,
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
			"duration":  summary.Duration,
		}); err != nil {
			logger.Debug("batch notification failed", logging.Error(err))
		}
	}
	return summary, nil
}

func (d *Driver) processItem(ctx context.Context, logger *slog.Logger, phase Phase, book *ledger.Ledger, item *ledger.Item, handlers []stage.Handler, dryRun bool, summary *Summary) error {
	itemCtx := services.WithItemIndex(ctx, item.Row)
	itemLogger := logger.With(
		logging.Int(logging.FieldItemIndex, item.Row),
		logging.String("artist", item.Artist),
		logging.String("title", item.Title),
	)

	if !phase.Eligible(item.Status) {
		summary.Skipped++
		itemLogger.Info("item skipped", logging.Args(append(
			logging.DecisionAttrs("batch_item", "skip", "status not eligible for "+phase.String()),
			logging.String("status", item.Status.String()),
		)...)...)
		return nil
	}

	previous := item.Status
	itemStarted := time.Now()
	var (
		newStatus ledger.Status
		track     *pipeline.Track
		runErr    error
	)

	id, err := naming.NewIdentity(item.Artist, item.Title)
	if err != nil {
		runErr = err
		newStatus = phase.Outcome(true)
	} else {
		job := stage.NewJob(id, item.Input(), d.cfg.Paths.OutputDir)
		track = d.runner.Run(itemCtx, pipeline.NewTrack(job), handlers)
		if ctx.Err() != nil {
			itemLogger.Warn("item interrupted; status left unchanged",
				logging.String("status", previous.String()),
				logging.String(logging.FieldImpact, "row will be retried on the next run"),
			)
			return ctx.Err()
		}
		runErr = track.Err()
		newStatus = phase.Outcome(track.Failed())
	}

	summary.Processed++
	if dryRun {
		itemLogger.Info("item planned", logging.Args(logging.DecisionAttrs("batch_item", "would_run", "dry run; ledger unchanged")...)...)
		return nil
	}

	book.SetStatus(item, newStatus)
	if err := book.Save(); err != nil {
		return fmt.Errorf("save ledger after row %d: %w", item.Row, err)
	}
	if newStatus.Failed() {
		summary.Failed++
		itemLogger.Warn("item failed",
			logging.String("status", newStatus.String()),
			logging.Error(runErr),
			logging.String(logging.FieldImpact, "row marked "+newStatus.String()),
			logging.String(logging.FieldErrorHint, "reset the row to Uploaded to retry"),
		)
	} else {
		summary.Succeeded++
		itemLogger.Info("item completed", logging.String("status", newStatus.String()))
	}

	d.record(itemCtx, itemLogger, journal.Entry{
		RunID:         summary.RunID,
		Phase:         phase.String(),
		LedgerPath:    d.ledgerPath,
		Row:           item.Row,
		Track:         trackName(id, item),
		OldStatus:     previous.String(),
		NewStatus:     newStatus.String(),
		FailedStages:  failedStages(track),
		Duration:      time.Since(itemStarted),
		CorrelationID: correlationID(track),
		Error:         services.Summary(runErr),
	})

	if d.onItemSaved != nil {
		d.onItemSaved(item)
	}
	return nil
}

func (d *Driver) record(ctx context.Context, logger *slog.Logger, entry journal.Entry) {
	if d.journal == nil {
		return
	}
	if _, err := d.journal.Record(ctx, entry); err != nil {
		logger.Warn("journal write failed", logging.Error(err),
			logging.String(logging.FieldImpact, "history incomplete; ledger is unaffected"))
	}
}

func trackName(id naming.Identity, item *ledger.Item) string {
	if base := id.BaseName(); base != "" {
		return base
	}
	return item.Artist + " - " + item.Title
}

func failedStages(track *pipeline.Track) []string {
	if track == nil {
		return nil
	}
	return track.FailedStages()
}

func correlationID(track *pipeline.Track) string {
	if track == nil {
		return ""
	}
	return track.RequestID
}

// IsBusy reports whether err means another driver holds the ledger.
func IsBusy(err error) bool {
	return errors.Is(err, ledger.ErrLedgerBusy)
}

// ResetRow sets one row's status and saves the ledger under its lock. It is
// the operator path for retrying failed rows.
func ResetRow(path string, row int, status ledger.Status) (ledger.Status, error) {
	lock, err := ledger.Lock(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = lock.Unlock() }()

	book, err := ledger.Load(path)
	if err != nil {
		return "", err
	}
	item, ok := book.Item(row)
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "batch", "reset", fmt.Sprintf("row %d not in ledger", row), nil)
	}
	previous := item.Status
	book.SetStatus(item, status)
	if err := book.Save(); err != nil {
		return "", err
	}
	return previous, nil
}

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"karaokeprep/internal/config"
	"karaokeprep/internal/fileutil"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/naming"
	"karaokeprep/internal/notifications"
	"karaokeprep/internal/publish"
	"karaokeprep/internal/services"
	"karaokeprep/internal/stage"
)

// Receipt is the content of the published marker file.
type Receipt struct {
	Track       string           `json:"track"`
	Artist      string           `json:"artist"`
	Title       string           `json:"title"`
	Code        string           `json:"code"`
	Folder      string           `json:"folder"`
	Objects     []publish.Object `json:"objects,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
}

// Distribute uploads the organised folder (when publishing is enabled),
// announces the track, and writes a receipt.
type Distribute struct {
	cfg      *config.Config
	uploader publish.Uploader
	notifier notifications.Service
	now      func() time.Time
	logger   *slog.Logger
}

func NewDistribute(cfg *config.Config, d Deps) *Distribute {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Distribute{
		cfg:      cfg,
		uploader: d.Uploader,
		notifier: notifier,
		now:      now,
		logger:   logging.NewComponentLogger(d.Logger, "stage."+NameDistribute),
	}
}

func (d *Distribute) Name() string        { return NameDistribute }
func (d *Distribute) DependsOn() []string { return []string{NameFinalize} }

func (d *Distribute) Outputs(job *stage.Job) []string {
	return []string{job.Path(publishedOutput())}
}

func (d *Distribute) Execute(ctx context.Context, job *stage.Job) error {
	logger := logging.WithContext(ctx, d.logger)
	code, err := ReadBrandCode(job)
	if err != nil {
		return services.Wrap(services.ErrValidation, NameDistribute, "read brand code", "", err)
	}
	folderName := naming.OrganisedDirName(code, job.BaseName())
	folder := filepath.Join(d.cfg.Paths.OrganisedDir, folderName)
	if !fileutil.IsDir(folder) {
		return services.Wrap(services.ErrNotFound, NameDistribute, "organised folder", folder, nil)
	}

	receipt := Receipt{
		Track:  job.BaseName(),
		Artist: job.Identity.Artist,
		Title:  job.Identity.Title,
		Code:   code,
		Folder: folder,
	}
	location := folder

	if d.cfg.Publish.Enabled && d.uploader != nil {
		files, err := folderFiles(folder)
		if err != nil {
			return fmt.Errorf("distribute: list organised folder: %w", err)
		}
		objects, err := publish.UploadAll(ctx, d.uploader, d.cfg.Publish.Prefix, folderName, files)
		if err != nil {
			return err
		}
		receipt.Objects = objects
		if len(objects) > 0 {
			location = objects[0].Location
		}
		logger.Info("organised folder uploaded", logging.String("code", code), logging.Int("objects", len(objects)))
	} else {
		logger.Debug("upload skipped", logging.Args(logging.DecisionAttrs("publish", "skip", "publishing disabled")...)...)
	}

	receipt.PublishedAt = d.now().UTC()
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return fmt.Errorf("distribute: encode receipt: %w", err)
	}
	if err := fileutil.WriteFileAtomic(job.Path(publishedOutput()), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("distribute: write receipt: %w", err)
	}

	if err := d.notifier.Publish(ctx, notifications.EventTrackPublished, notifications.Payload{
		"track":    job.BaseName(),
		"code":     code,
		"location": location,
	}); err != nil {
		logger.Warn("publish notification failed", logging.Error(err),
			logging.String(logging.FieldImpact, "track distributed without announcement"))
	}
	return nil
}

func folderFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (d *Distribute) HealthCheck(ctx context.Context) stage.Health {
	if !d.cfg.Publish.Enabled {
		return stage.Healthy(NameDistribute)
	}
	if d.uploader == nil {
		return stage.Unhealthy(NameDistribute, "publishing enabled but no uploader configured")
	}
	if err := d.uploader.Check(ctx); err != nil {
		return stage.Unhealthy(NameDistribute, services.Summary(err))
	}
	return stage.Healthy(NameDistribute)
}

package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"karaokeprep/internal/config"
	"karaokeprep/internal/fileutil"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/naming"
	"karaokeprep/internal/sequence"
	"karaokeprep/internal/services"
	"karaokeprep/internal/stage"
)

// CodeAllocator serializes brand-code allocation and folder creation for the
// finalize stages that share it. Separate processes can still collide; see
// the sequence package.
type CodeAllocator struct {
	mu sync.Mutex
}

func NewCodeAllocator() *CodeAllocator { return &CodeAllocator{} }

// Finalize assigns the track its brand code and files copies of the finished
// artifacts under "{organised_dir}/{CODE} - {base}/". The brand code file is
// written last and is the stage's only gate output.
type Finalize struct {
	cfg    *config.Config
	codes  *CodeAllocator
	logger *slog.Logger
}

func NewFinalize(cfg *config.Config, d Deps) *Finalize {
	codes := d.Codes
	if codes == nil {
		codes = NewCodeAllocator()
	}
	return &Finalize{cfg: cfg, codes: codes, logger: logging.NewComponentLogger(d.Logger, "stage."+NameFinalize)}
}

func (f *Finalize) Name() string        { return NameFinalize }
func (f *Finalize) DependsOn() []string { return []string{NameCompose} }

func (f *Finalize) Outputs(job *stage.Job) []string {
	return []string{job.Path(brandCodeOutput())}
}

// Deliverables lists the files copied into the organised folder. Only the
// final video is mandatory.
func (f *Finalize) Deliverables(job *stage.Job) []string {
	return []string{
		job.Path(finalOutput(f.cfg)),
		job.Path(lyricsOutput()),
		job.Path(instrumentalOutput(f.cfg)),
	}
}

func (f *Finalize) Execute(ctx context.Context, job *stage.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	organised := f.cfg.Paths.OrganisedDir
	prefix := f.cfg.Naming.BrandPrefix

	final := job.Path(finalOutput(f.cfg))
	if !fileutil.NonEmpty(final) {
		return services.Wrap(services.ErrValidation, NameFinalize, "deliverables", "final video missing: "+final, nil)
	}

	code, folder, reused, err := f.codes.Claim(organised, prefix, job.BaseName())
	if err != nil {
		if errors.Is(err, sequence.ErrTargetMissing) {
			return services.Wrap(services.ErrConfiguration, NameFinalize, "allocate code", "organised directory must exist", err)
		}
		return services.Wrap(services.ErrTransient, NameFinalize, "allocate code", "", err)
	}
	decision := "allocated"
	if reused {
		decision = "reused"
	}
	logger.Info("brand code assigned", logging.Args(append(
		logging.DecisionAttrs("brand_code", decision, "organised folder scan"),
		logging.String("code", code),
		logging.String("folder", folder),
	)...)...)

	copied := 0
	for _, src := range f.Deliverables(job) {
		if !fileutil.NonEmpty(src) {
			continue
		}
		dst := filepath.Join(folder, filepath.Base(src))
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return services.Wrap(services.ErrTransient, NameFinalize, "copy deliverable", filepath.Base(src), err)
		}
		copied++
	}

	if err := fileutil.WriteFileAtomic(job.Path(brandCodeOutput()), []byte(code+"\n"), 0o644); err != nil {
		return fmt.Errorf("finalize: write brand code: %w", err)
	}
	logger.Info("track finalized", logging.String("code", code), logging.Int("files", copied))
	return nil
}

// Claim reuses a folder left by an interrupted earlier run for the same base
// name, otherwise allocates the next code and creates its folder.
func (a *CodeAllocator) Claim(organised, prefix, base string) (code, folder string, reused bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !fileutil.IsDir(organised) {
		return "", "", false, fmt.Errorf("%w: %s", sequence.ErrTargetMissing, organised)
	}
	if code, ok := existingCode(organised, prefix, base); ok {
		return code, filepath.Join(organised, naming.OrganisedDirName(code, base)), true, nil
	}
	code, _, err = sequence.Next(organised, prefix)
	if err != nil {
		return "", "", false, err
	}
	folder = filepath.Join(organised, naming.OrganisedDirName(code, base))
	if err := os.Mkdir(folder, 0o755); err != nil {
		return "", "", false, fmt.Errorf("create organised folder: %w", err)
	}
	return code, folder, false, nil
}

func existingCode(organised, prefix, base string) (string, bool) {
	entries, err := os.ReadDir(organised)
	if err != nil {
		return "", false
	}
	pattern := regexp.MustCompile("^(" + regexp.QuoteMeta(strings.TrimSpace(prefix)) + `-\d{4,}) - ` + regexp.QuoteMeta(base) + "$")
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := pattern.FindStringSubmatch(e.Name()); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// HealthCheck requires the organised directory to exist.
func (f *Finalize) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(f.cfg.Naming.BrandPrefix) == "" {
		return stage.Unhealthy(NameFinalize, "brand prefix not configured")
	}
	if !fileutil.IsDir(f.cfg.Paths.OrganisedDir) {
		return stage.Unhealthy(NameFinalize, "organised directory missing: "+f.cfg.Paths.OrganisedDir)
	}
	return stage.Healthy(NameFinalize)
}

// ReadBrandCode returns the code recorded by finalize for job.
func ReadBrandCode(job *stage.Job) (string, error) {
	data, err := os.ReadFile(job.Path(brandCodeOutput()))
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(string(data))
	if code == "" {
		return "", fmt.Errorf("brand code file is empty")
	}
	return code, nil
}

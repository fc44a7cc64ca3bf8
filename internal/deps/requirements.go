package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"karaokeprep/internal/config"
)

// EngineRequirements derives binary requirements from the configured engine
// templates. The downloader is optional: only URL inputs need it.
func EngineRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	e := cfg.Engines
	return []Requirement{
		{Name: "Downloader", Command: first(e.Downloader), Description: "Fetches audio for URL inputs", Optional: true},
		{Name: "Converter", Command: first(e.Converter), Description: "Converts local audio to the working format"},
		{Name: "Separator", Command: first(e.Separator), Description: "Splits audio into instrumental and vocal stems"},
		{Name: "Lyrics", Command: first(e.Lyrics), Description: "Produces synchronized lyrics"},
		{Name: "Title renderer", Command: first(e.TitleRenderer), Description: "Renders the title card"},
		{Name: "Composer", Command: first(e.Composer), Description: "Renders the final karaoke video"},
	}
}

func first(template []string) string {
	if len(template) == 0 {
		return ""
	}
	return strings.TrimSpace(template[0])
}

// CheckDirectories reports whether the configured directories are usable.
// The organised directory must already exist; the others are created on demand
// and only need a writable ancestor.
func CheckDirectories(cfg *config.Config) []Status {
	if cfg == nil {
		return nil
	}
	return []Status{
		checkDir("Output directory", cfg.Paths.OutputDir, false),
		checkDir("Organised directory", cfg.Paths.OrganisedDir, true),
		checkDir("Log directory", cfg.Paths.LogDir, false),
		checkDir("Lock directory", cfg.Paths.LockDir, false),
	}
}

func checkDir(name, dir string, mustExist bool) Status {
	status := Status{Name: name, Command: dir}
	if strings.TrimSpace(dir) == "" {
		status.Detail = "not configured"
		return status
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		status.Detail = "exists but is not a directory"
		return status
	case err == nil:
		status.Available = writable(dir)
		if !status.Available {
			status.Detail = "not writable"
		}
		return status
	case mustExist:
		status.Detail = "does not exist; create it before finalizing tracks"
		return status
	}
	parent := filepath.Dir(dir)
	for parent != filepath.Dir(parent) {
		if info, err := os.Stat(parent); err == nil {
			if info.IsDir() && writable(parent) {
				status.Available = true
				status.Detail = "will be created"
			} else {
				status.Detail = fmt.Sprintf("ancestor %s is not writable", parent)
			}
			return status
		}
		parent = filepath.Dir(parent)
	}
	status.Detail = "no existing ancestor"
	return status
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".karaokeprep-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

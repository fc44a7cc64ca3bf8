// Package stagegate decides whether a stage already ran by looking at its
// expected outputs on disk. A stage is done when every output exists and is
// non-empty; zero-byte files left by an interrupted writer count as missing.
package stagegate

import "karaokeprep/internal/fileutil"

// Decision is the gate verdict for one stage.
type Decision int

const (
	NotStarted Decision = iota
	Done
)

func (d Decision) String() string {
	if d == Done {
		return "done"
	}
	return "not_started"
}

// IsDone reports whether every path exists and is non-empty. A stage with no
// declared outputs is never done.
func IsDone(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, path := range paths {
		if !fileutil.NonEmpty(path) {
			return false
		}
	}
	return true
}

// Check returns the Decision for paths.
func Check(paths []string) Decision {
	if IsDone(paths) {
		return Done
	}
	return NotStarted
}

// Missing lists the paths that are absent or empty, in input order.
func Missing(paths []string) []string {
	var missing []string
	for _, path := range paths {
		if !fileutil.NonEmpty(path) {
			missing = append(missing, path)
		}
	}
	return missing
}

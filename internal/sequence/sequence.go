// Package sequence allocates human-readable "{prefix}-{NNNN}" codes by scanning
// a destination directory for the highest code already in use. Numbers are
// zero-padded to at least four digits.
//
// Allocation holds no lock of its own: two callers that scan before either
// creates its entry receive the same number. Callers that need uniqueness
// under concurrency must serialize around NextNumber and the directory
// creation that follows it.
package sequence

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"karaokeprep/internal/fileutil"
)

// ErrTargetMissing is returned when the destination directory does not exist.
var ErrTargetMissing = errors.New("sequence target directory missing")

// NextNumber returns one more than the largest number among entries named
// "{prefix}-{4 or more digits}..." in dir, or 1 when none match. Codes past
// 9999 widen rather than wrap.
func NextNumber(dir, prefix string) (int, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, errors.New("sequence prefix is required")
	}
	if !fileutil.IsDir(dir) {
		return 0, fmt.Errorf("%w: %s", ErrTargetMissing, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read sequence directory: %w", err)
	}

	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `-(\d{4,})`)
	highest := 0
	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// FormatCode renders "{prefix}-{number:04d}".
func FormatCode(prefix string, number int) string {
	return fmt.Sprintf("%s-%04d", strings.TrimSpace(prefix), number)
}

// Next combines NextNumber and FormatCode.
func Next(dir, prefix string) (string, int, error) {
	n, err := NextNumber(dir, prefix)
	if err != nil {
		return "", 0, err
	}
	return FormatCode(prefix, n), n, nil
}

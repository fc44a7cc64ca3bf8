package ledger

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of one ledger row.
type Status string

const (
	StatusUploaded     Status = "Uploaded"
	StatusPrepComplete Status = "PrepComplete"
	StatusPrepFailed   Status = "PrepFailed"
	StatusCompleted    Status = "Completed"
	StatusRenderFailed Status = "RenderFailed"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusPrepComplete,
	StatusPrepFailed,
	StatusCompleted,
	StatusRenderFailed,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus matches value case-insensitively against the known statuses.
func ParseStatus(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	for _, s := range allStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Terminal reports whether no phase picks the status up again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPrepFailed, StatusRenderFailed:
		return true
	default:
		return false
	}
}

// Failed reports whether the status records a phase failure.
func (s Status) Failed() bool {
	return s == StatusPrepFailed || s == StatusRenderFailed
}

func (s Status) String() string { return string(s) }

package services

import "context"

type contextKey string

const (
	trackKey     contextKey = "track"
	stageKey     contextKey = "stage"
	phaseKey     contextKey = "phase"
	itemIndexKey contextKey = "item_index"
	requestIDKey contextKey = "request_id"
)

// WithTrack annotates context with the track base name.
func WithTrack(ctx context.Context, baseName string) context.Context {
	if baseName == "" {
		return ctx
	}
	return context.WithValue(ctx, trackKey, baseName)
}

// TrackFromContext returns the track base name if present.
func TrackFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(trackKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithPhase annotates context with the batch phase (phase1/phase2).
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the batch phase if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithItemIndex annotates context with the 1-based ledger row being processed.
func WithItemIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, itemIndexKey, index)
}

// ItemIndexFromContext extracts the ledger row index if present.
func ItemIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(itemIndexKey).(int)
	return v, ok
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// Package notifications delivers pipeline events via pluggable notifiers.
//
// NewService publishes to an ntfy topic, a chat webhook receiving JSON, or
// both, and degrades to a no-op when neither is configured. Each event type
// can be suppressed from config. Pipeline code depends only on the Service
// interface.
package notifications

package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"karaokeprep/internal/config"
)

const userAgent = "karaokeprep/0.1"

// Event names a pipeline milestone.
type Event string

const (
	EventTrackPublished   Event = "track_published"
	EventStageFailed      Event = "stage_failed"
	EventStaleLock        Event = "stale_lock_recovered"
	EventBatchCompleted   Event = "batch_completed"
	EventTestNotification Event = "test"
)

// Payload carries event fields. Keys are documented per event in format.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service from config. When no transport is
// configured a no-op implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var senders []sender
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		senders = append(senders, &ntfySender{endpoint: topic, client: client})
	}
	if hook := strings.TrimSpace(n.WebhookURL); hook != "" {
		senders = append(senders, &webhookSender{endpoint: hook, client: client})
	}
	if len(senders) == 0 {
		return noopService{}
	}
	return &service{
		senders: senders,
		enabled: map[Event]bool{
			EventTrackPublished:   n.TrackPublished,
			EventStageFailed:      n.StageFailures,
			EventStaleLock:        n.StaleLocks,
			EventBatchCompleted:   n.BatchSummary,
			EventTestNotification: true,
		},
	}
}

type message struct {
	Event    Event          `json:"event"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Tags     []string       `json:"tags,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

type sender interface {
	send(ctx context.Context, msg message) error
}

type service struct {
	senders []sender
	enabled map[Event]bool
}

func (s *service) Publish(ctx context.Context, event Event, payload Payload) error {
	if !s.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	var errs []error
	for _, snd := range s.senders {
		if err := snd.send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func format(event Event, payload Payload) (message, bool) {
	msg := message{Event: event, Fields: stringify(payload)}
	switch event {
	case EventTrackPublished:
		track := payloadString(payload, "track")
		code := payloadString(payload, "code")
		msg.Title = "karaokeprep - Published"
		msg.Message = fmt.Sprintf("🎤 %s filed as %s", track, code)
		if location := payloadString(payload, "location"); location != "" {
			msg.Message += "\n" + location
		}
		msg.Tags = []string{"karaokeprep", "published"}
	case EventStageFailed:
		msg.Title = "karaokeprep - Stage Failed"
		msg.Message = fmt.Sprintf("❌ %s failed for %s: %s",
			payloadString(payload, "stage"), payloadString(payload, "track"), payloadString(payload, "error"))
		msg.Tags = []string{"karaokeprep", "error", "alert"}
		msg.Priority = "high"
	case EventStaleLock:
		msg.Title = "karaokeprep - Stale Lock Recovered"
		msg.Message = fmt.Sprintf("🔓 Recovered %s lock left by dead pid %s", payloadString(payload, "resource"), payloadString(payload, "pid"))
		msg.Tags = []string{"karaokeprep", "lock", "warning"}
	case EventBatchCompleted:
		processed := payloadString(payload, "processed")
		failed := payloadString(payload, "failed")
		phase := payloadString(payload, "phase")
		if failed == "" || failed == "0" {
			msg.Title = "karaokeprep - Batch Complete"
			msg.Message = fmt.Sprintf("%s complete: %s items processed in %s", phase, processed, payloadString(payload, "duration"))
		} else {
			msg.Title = "karaokeprep - Batch Complete (with errors)"
			msg.Message = fmt.Sprintf("%s complete: %s succeeded, %s failed in %s",
				phase, payloadString(payload, "succeeded"), failed, payloadString(payload, "duration"))
		}
		msg.Tags = []string{"karaokeprep", "batch", "completed"}
	case EventTestNotification:
		msg.Title = "karaokeprep - Test"
		msg.Message = "🧪 Notification system test"
		msg.Tags = []string{"karaokeprep", "test"}
		msg.Priority = "low"
	default:
		return message{}, false
	}
	return msg, true
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case time.Duration:
		return v.Round(time.Second).String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func stringify(payload Payload) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for key := range payload {
		out[key] = payloadString(payload, key)
	}
	return out
}

type ntfySender struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySender) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}
	return do(n.client, req, "ntfy")
}

type webhookSender struct {
	endpoint string
	client   *http.Client
}

func (w *webhookSender) send(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	return do(w.client, req, "webhook")
}

func do(client *http.Client, req *http.Request, label string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s returned %d: %s", label, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNoop returns a Service that drops every event.
func NewNoop() Service { return noopService{} }

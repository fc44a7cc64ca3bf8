package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"karaokeprep/internal/config"
	"karaokeprep/internal/notifications"
)

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventStageFailed, notifications.Payload{"stage": "separate"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "track published",
			event:         notifications.EventTrackPublished,
			payload:       notifications.Payload{"track": "ABBA - Waterloo", "code": "KARA-0006"},
			expectTitle:   "karaokeprep - Published",
			expectMessage: "🎤 ABBA - Waterloo filed as KARA-0006",
			expectTags:    "karaokeprep,published",
		},
		{
			name:           "stage failed",
			event:          notifications.EventStageFailed,
			payload:        notifications.Payload{"track": "ABBA - Waterloo", "stage": "separate", "error": "exit status 1"},
			expectTitle:    "karaokeprep - Stage Failed",
			expectMessage:  "❌ separate failed for ABBA - Waterloo: exit status 1",
			expectTags:     "karaokeprep,error,alert",
			expectPriority: "high",
		},
		{
			name:          "stale lock",
			event:         notifications.EventStaleLock,
			payload:       notifications.Payload{"resource": "audio-separation", "pid": 4242},
			expectTitle:   "karaokeprep - Stale Lock Recovered",
			expectMessage: "🔓 Recovered audio-separation lock left by dead pid 4242",
			expectTags:    "karaokeprep,lock,warning",
		},
		{
			name:  "batch with failures",
			event: notifications.EventBatchCompleted,
			payload: notifications.Payload{
				"phase": "phase1", "processed": 3, "succeeded": 2, "failed": 1, "duration": 90 * time.Second,
			},
			expectTitle:   "karaokeprep - Batch Complete (with errors)",
			expectMessage: "phase1 complete: 2 succeeded, 1 failed in 1m30s",
			expectTags:    "karaokeprep,batch,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if gotTitle != tc.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tc.expectTitle)
			}
			if gotBody != tc.expectMessage {
				t.Fatalf("message = %q, want %q", gotBody, tc.expectMessage)
			}
			if gotTags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tc.expectTags)
			}
			if gotPriority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tc.expectPriority)
			}
		})
	}
}

func TestServiceIgnoresSuppressedEvents(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.StaleLocks = false
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventStaleLock, notifications.Payload{"resource": "gpu"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("unknown"), nil); err != nil {
		t.Fatalf("Publish unknown: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected suppressed events to send nothing, got %d requests", hits.Load())
	}
}

func TestWebhookReceivesJSON(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.WebhookURL = server.URL
	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTrackPublished, notifications.Payload{
		"track": "ABBA - Waterloo", "code": "KARA-0001", "location": "s3://karaoke/KARA-0001",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if received["event"] != "track_published" {
		t.Fatalf("unexpected event %v", received["event"])
	}
	fields, _ := received["fields"].(map[string]any)
	if fields["code"] != "KARA-0001" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTestNotification, nil); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

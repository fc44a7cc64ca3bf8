package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"karaokeprep/internal/config"
	"karaokeprep/internal/services"
)

type recordingUploader struct {
	keys   []string
	failOn string
}

func (r *recordingUploader) Upload(_ context.Context, key, _ string) (string, error) {
	if r.failOn != "" && strings.HasSuffix(key, r.failOn) {
		return "", errors.New("boom")
	}
	r.keys = append(r.keys, key)
	return "mem://" + key, nil
}

func (r *recordingUploader) Check(context.Context) error { return nil }

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix, folder, file, want string
	}{
		{"karaoke", "KARA-0001 - ABBA - Waterloo", "a.mp4", "karaoke/KARA-0001 - ABBA - Waterloo/a.mp4"},
		{"", "F", "a.mp4", "F/a.mp4"},
		{"/nested/prefix/", "F", "a.mp4", "nested/prefix/F/a.mp4"},
	}
	for _, tc := range cases {
		if got := ObjectKey(tc.prefix, tc.folder, tc.file); got != tc.want {
			t.Fatalf("ObjectKey(%q,%q,%q) = %q, want %q", tc.prefix, tc.folder, tc.file, got, tc.want)
		}
	}
}

func TestUploadAllStopsAtFirstFailure(t *testing.T) {
	up := &recordingUploader{failOn: "b.txt"}
	objects, err := UploadAll(context.Background(), up, "p", "F", []string{"/x/a.mp4", "/x/b.txt", "/x/c.lrc"})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if len(objects) != 1 || objects[0].Key != "p/F/a.mp4" || objects[0].Location != "mem://p/F/a.mp4" {
		t.Fatalf("unexpected objects %#v", objects)
	}
}

func TestNewMinioRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinio(config.Publish{Bucket: "b"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMinioUploaderPutsObject(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	up, err := NewMinio(config.Publish{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		Region:    "us-east-1",
		Bucket:    "karaoke",
		AccessKey: "access",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewMinio: %v", err)
	}

	local := filepath.Join(t.TempDir(), "song.mp4")
	if err := os.WriteFile(local, []byte("video"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	location, err := up.Upload(context.Background(), "p/F/song.mp4", local)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasSuffix(location, "/karaoke/p/F/song.mp4") || !strings.HasPrefix(location, "http://") {
		t.Fatalf("unexpected location %q", location)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(puts) != 1 || puts[0] != "/karaoke/p/F/song.mp4" {
		t.Fatalf("unexpected PUT requests %v", puts)
	}
}

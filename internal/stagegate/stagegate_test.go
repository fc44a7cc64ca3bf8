package stagegate_test

import (
	"os"
	"path/filepath"
	"testing"

	"karaokeprep/internal/stagegate"
)

func TestIsDone(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "a.flac")
	empty := filepath.Join(dir, "b.flac")
	absent := filepath.Join(dir, "c.flac")
	if err := os.WriteFile(full, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  bool
	}{
		{"all present", []string{full}, true},
		{"zero byte", []string{full, empty}, false},
		{"absent", []string{full, absent}, false},
		{"no outputs", nil, false},
		{"directory", []string{dir}, false},
	}
	for _, tc := range tests {
		if got := stagegate.IsDone(tc.paths); got != tc.want {
			t.Fatalf("%s: IsDone = %v, want %v", tc.name, got, tc.want)
		}
	}

	if stagegate.Check([]string{full}) != stagegate.Done {
		t.Fatal("expected Done decision")
	}
	missing := stagegate.Missing([]string{full, empty, absent})
	if len(missing) != 2 || missing[0] != empty || missing[1] != absent {
		t.Fatalf("unexpected missing list %v", missing)
	}
}

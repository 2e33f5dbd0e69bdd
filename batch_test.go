package rawpreview

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsRawFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"shot.cr2", true},
		{"SHOT.CR3", true},
		{"img.NEF", true},
		{"pic.rw2", true},
		{"photo.jpg", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tc := range cases {
		if got := IsRawFile(tc.path); got != tc.want {
			t.Errorf("IsRawFile(%q) = %t, want %t", tc.path, got, tc.want)
		}
	}
}

func TestExtractDirectory(t *testing.T) {
	dir := t.TempDir()
	raw := testCR2(testJPEG(600*1024), testJPEG(2048))

	for _, name := range []string{"a.cr2", "sub/b.cr2"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not raw"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	// A RAW extension over garbage content must fail, not abort the walk.
	if err := os.WriteFile(filepath.Join(dir, "broken.nef"), make([]byte, 64), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	entries, summary, err := ExtractDirectory(dir, nil, 4)
	if err != nil {
		t.Fatalf("ExtractDirectory: %v", err)
	}
	if summary.Processed != 3 {
		t.Fatalf("processed = %d, want 3", summary.Processed)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", summary.Succeeded, summary.Failed)
	}
	if len(entries) != 3 {
		t.Fatalf("entry count = %d, want 3", len(entries))
	}
	// Sorted by path: a.cr2, broken.nef, sub/b.cr2.
	if filepath.Base(entries[0].Path) != "a.cr2" {
		t.Errorf("first entry = %s, want a.cr2", entries[0].Path)
	}
	if !entries[0].Result.Success || entries[0].Result.Preview.Type != "CR2_IFD0" {
		t.Errorf("a.cr2 result = %+v", entries[0].Result.Err)
	}
	if entries[1].Result.Success {
		t.Error("garbage .nef extraction succeeded")
	}
}

func TestExtractDirectoryMissing(t *testing.T) {
	if _, _, err := ExtractDirectory(filepath.Join(t.TempDir(), "nope"), nil, 1); err == nil {
		t.Error("missing directory accepted")
	}
}

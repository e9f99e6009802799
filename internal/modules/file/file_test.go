package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"photo.png", "photo.png"},
		{"  photo.png  ", "photo.png"},
		{"../../etc/passwd", "passwd"},
		{"dir/sub/name.jpg", "name.jpg"},
		{"bad name.png", ""},
		{"weird$chars.png", ""},
		{"", ""},
		{".", ""},
	}
	for _, tc := range cases {
		if got := safeName(tc.in); got != tc.want {
			t.Errorf("safeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildFileNameShape(t *testing.T) {
	a := buildFileName(".png")
	b := buildFileName(".png")
	if a == b {
		t.Fatal("generated names must be unique")
	}
	if filepath.Ext(a) != ".png" || len(a) != 18+len(".png") {
		t.Fatalf("unexpected name shape: %q", a)
	}
}

func TestRemoveStaysInsideStorageDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	s := NewStorage(dir)

	inside := filepath.Join(dir, "keep.png")
	outside := filepath.Join(root, "secret.png")
	for _, p := range []string{inside, outside} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	// Foreign URIs and traversal attempts are no-ops.
	s.Remove("https://cdn.example.com/keep.png")
	s.Remove("/uploads/../secret.png")
	s.Remove("/uploads/")

	if _, err := os.Stat(inside); err != nil {
		t.Fatalf("stored file should be untouched: %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside the storage dir must survive traversal: %v", err)
	}

	s.Remove("/uploads/keep.png")
	if _, err := os.Stat(inside); !os.IsNotExist(err) {
		t.Fatal("file should be removed for its own URI")
	}
}

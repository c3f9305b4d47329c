package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// CreateFile writes content to dir/name, creating parents, and returns
// the path.
func CreateFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create parent directories for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	return path
}

// CreateDir creates parent/name and returns its path, without a trailing
// separator.
func CreateDir(t *testing.T, parent, name string) string {
	t.Helper()

	path := filepath.Join(parent, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", path, err)
	}
	return path
}

// CreateSymlink makes link point at target.
func CreateSymlink(t *testing.T, target, link string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		t.Fatalf("Failed to create parent directory for symlink %s: %v", link, err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Failed to create symlink %s -> %s: %v", link, target, err)
	}
}

// AssertFileContent fails unless path is a regular file holding expected.
func AssertFileContent(t *testing.T, path, expected string) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		t.Fatalf("File %s does not exist", path)
	}
	actual, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	if string(actual) != expected {
		t.Errorf("File %s content mismatch\nExpected: %q\nActual: %q", path, expected, string(actual))
	}
}

//go:build integration

package integration

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// FixturesDir returns the path to the fixtures directory
func FixturesDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(filename), "fixtures")
}

// DocsDir returns the path to the sample documents
func DocsDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(FixturesDir(t), "docs")
}

// TempDBPath creates a temporary database path for testing
func TempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// CopyFixturesToTemp copies the sample documents to a temp directory so
// commands run next to them cannot touch the repository
func CopyFixturesToTemp(t *testing.T) string {
	t.Helper()
	src := DocsDir(t)
	dst := filepath.Join(t.TempDir(), "docs")

	if err := copyDir(src, dst); err != nil {
		t.Fatalf("Failed to copy fixtures: %v", err)
	}

	return dst
}

// copyDir recursively copies a directory
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		targetPath := filepath.Join(dst, relPath)

		if info.IsDir() {
			return os.MkdirAll(targetPath, 0755)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(targetPath, data, 0644)
	})
}

// Result is one CLI invocation
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes the binary with an isolated HOME and the given extra env
func Run(t *testing.T, binary string, env []string, args ...string) Result {
	t.Helper()
	cmd := exec.Command(binary, args...)
	cmd.Env = append([]string{
		"HOME=" + t.TempDir(),
		"PATH=" + os.Getenv("PATH"),
		"NO_COLOR=1",
	}, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{}
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		t.Fatalf("running %s: %v", binary, err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chojs23/runme/internal/domain"
	"github.com/chojs23/runme/internal/report"
)

// binaryPath returns the path to the built CLI binary
func binaryPath(t *testing.T) string {
	t.Helper()
	paths := []string{
		"../runme",
		"./runme",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}

	// Try to build it
	t.Log("Binary not found, building...")
	cmd := exec.Command("go", "build", "-o", "../runme", "../cmd/runme")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}

	abs, _ := filepath.Abs("../runme")
	return abs
}

func runJSON(t *testing.T, binary string, env []string, args ...string) (report.Document, Result) {
	t.Helper()
	res := Run(t, binary, append(env, "RUNME_FORMAT=json"), args...)
	var doc report.Document
	if err := json.Unmarshal([]byte(res.Stdout), &doc); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\nstdout:\n%s\nstderr:\n%s", err, res.Stdout, res.Stderr)
	}
	return doc, res
}

func TestCLI_RunSucceeds(t *testing.T) {
	binary := binaryPath(t)
	docs := CopyFixturesToTemp(t)

	doc, res := runJSON(t, binary, nil, "run", filepath.Join(docs, "hello.md"))
	if res.ExitCode != report.ExitOK {
		t.Fatalf("exit code = %d, want 0\n%s", res.ExitCode, res.Stderr)
	}
	if len(doc.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(doc.Results))
	}
	r := doc.Results[0]
	if r.Status != domain.StatusSucceeded || len(r.LineResults) != 1 {
		t.Fatalf("result = %+v", r)
	}
	if lr := r.LineResults[0]; lr.ExitCode != 0 || lr.Stdout != "hello\n" {
		t.Errorf("line result = %+v, want exit 0 and stdout hello", lr)
	}
}

func TestCLI_IgnoredBlock(t *testing.T) {
	binary := binaryPath(t)
	docs := CopyFixturesToTemp(t)
	path := filepath.Join(docs, "ignored.md")

	res := Run(t, binary, nil, "list", path)
	if res.ExitCode != 0 {
		t.Fatalf("list exit code = %d\n%s", res.ExitCode, res.Stderr)
	}
	if !strings.Contains(res.Stdout, "- block-001 [bash] Setup (skip: marked with runme:ignore)") {
		t.Errorf("list output:\n%s", res.Stdout)
	}

	doc, res := runJSON(t, binary, nil, path)
	if res.ExitCode != 0 {
		t.Fatalf("run exit code = %d\n%s", res.ExitCode, res.Stderr)
	}
	if r := doc.Results[0]; r.Status != domain.StatusSkipped || len(r.LineResults) != 0 {
		t.Errorf("ignored block result = %+v", r)
	}
	if r := doc.Results[1]; r.Status != domain.StatusSucceeded {
		t.Errorf("second block result = %+v", r)
	}
}

func TestCLI_FailFast(t *testing.T) {
	binary := binaryPath(t)
	docs := CopyFixturesToTemp(t)

	doc, res := runJSON(t, binary, nil, filepath.Join(docs, "failing.md"))
	if res.ExitCode != report.ExitFailed {
		t.Fatalf("exit code = %d, want %d", res.ExitCode, report.ExitFailed)
	}
	r := doc.Results[0]
	if r.Status != domain.StatusFailed || len(r.LineResults) != 1 {
		t.Errorf("result = %+v, want failed after one line", r)
	}
}

func TestCLI_DuplicateNames(t *testing.T) {
	binary := binaryPath(t)
	docs := CopyFixturesToTemp(t)

	res := Run(t, binary, nil, filepath.Join(docs, "duplicate.md"))
	if res.ExitCode != report.ExitUsage {
		t.Fatalf("exit code = %d, want %d", res.ExitCode, report.ExitUsage)
	}
	if res.Stdout != "" {
		t.Errorf("nothing should run on discovery failure, got:\n%s", res.Stdout)
	}
	if !strings.Contains(res.Stderr, `"foo"`) {
		t.Errorf("stderr should name the duplicate: %s", res.Stderr)
	}
}

func TestCLI_UnreachableEngine(t *testing.T) {
	binary := binaryPath(t)
	docs := CopyFixturesToTemp(t)

	doc, res := runJSON(t, binary, nil, "--container-engine", "/nonexistent/docker", filepath.Join(docs, "container.md"))
	if res.ExitCode != report.ExitSandbox {
		t.Fatalf("exit code = %d, want %d", res.ExitCode, report.ExitSandbox)
	}
	if len(doc.Results) != 2 {
		t.Fatalf("results = %d, the run should continue past the first sandbox error", len(doc.Results))
	}
	for _, r := range doc.Results {
		if r.Status != domain.StatusSandboxError {
			t.Errorf("%s status = %s, want sandbox_error", r.BlockID, r.Status)
		}
	}
	if doc.Sandbox != "docker:alpine:3.20" {
		t.Errorf("sandbox = %q, frontmatter image should apply", doc.Sandbox)
	}
}

func TestCLI_History(t *testing.T) {
	binary := binaryPath(t)
	docs := CopyFixturesToTemp(t)
	dbPath := TempDBPath(t)
	config := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(config, []byte("[history]\ndatabase_path = \""+dbPath+"\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	Run(t, binary, nil, "--config", config, "--record", filepath.Join(docs, "hello.md"))
	Run(t, binary, nil, "--config", config, "--record", filepath.Join(docs, "failing.md"))

	res := Run(t, binary, nil, "--config", config, "history")
	if res.ExitCode != 0 {
		t.Fatalf("history exit code = %d\n%s", res.ExitCode, res.Stderr)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("history lines = %d, want 2:\n%s", len(lines), res.Stdout)
	}
	if !strings.Contains(lines[0], "failing.md") || !strings.Contains(lines[0], "exit 1") {
		t.Errorf("newest run first, got %q", lines[0])
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chojs23/runme/internal/report"
)

const passingDoc = "# Guide\n\n```bash runme:name=greet\necho \"hello\"\n```\n\n```python\nprint(1)\n```\n"

const failingDoc = "# Guide\n\n```sh\nfalse\necho unreached\n```\n\n```sh\necho after\n```\n"

func writeDoc(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, func(k string) string { return env[k] })
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return report.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestRun_Passing(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), passingDoc)

	for _, args := range [][]string{{doc}, {"run", doc}} {
		out, _, err := execute(t, nil, args...)
		if err != nil {
			t.Fatalf("%v: error = %v", args, err)
		}
		for _, want := range []string{"hello", "block-001 (greet): succeeded", `language "python" is not runnable`, "1 succeeded | 0 failed | 1 skipped"} {
			if !strings.Contains(out, want) {
				t.Errorf("%v: output missing %q\n%s", args, want, out)
			}
		}
	}
}

func TestRun_FailureStopsBlock(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), failingDoc)

	out, _, err := execute(t, nil, doc)
	if code := exitCode(err); code != report.ExitFailed {
		t.Fatalf("exit code = %d, want %d (err %v)", code, report.ExitFailed, err)
	}
	if strings.Contains(out, "$ echo unreached") {
		t.Errorf("line after failure was started:\n%s", out)
	}
	if !strings.Contains(out, "after") {
		t.Errorf("next block should still run:\n%s", out)
	}
}

func TestRun_BlockSelector(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), failingDoc)

	out, _, err := execute(t, nil, "--block", "block-002", doc)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if strings.Contains(out, "block-001") {
		t.Errorf("unselected block ran:\n%s", out)
	}

	_, _, err = execute(t, nil, "--block", "nope", doc)
	if code := exitCode(err); code != report.ExitUsage {
		t.Errorf("unknown block exit code = %d, want %d", code, report.ExitUsage)
	}
}

func TestRun_JSON(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), failingDoc)

	out, _, err := execute(t, map[string]string{"RUNME_FORMAT": "json"}, doc)
	if code := exitCode(err); code != report.ExitFailed {
		t.Fatalf("exit code = %d, want %d", code, report.ExitFailed)
	}

	var decoded report.Document
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if decoded.Summary.Failed != 1 || decoded.Summary.Succeeded != 1 || decoded.ExitCode != report.ExitFailed {
		t.Errorf("summary = %+v exit %d", decoded.Summary, decoded.ExitCode)
	}
}

func TestRun_UnreachableEngine(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), failingDoc)

	out, _, err := execute(t, nil, "--sandbox", "docker", "--container-engine", "/nonexistent/docker", doc)
	if code := exitCode(err); code != report.ExitSandbox {
		t.Fatalf("exit code = %d, want %d (err %v)", code, report.ExitSandbox, err)
	}
	if !strings.Contains(out, "2 sandbox errors") {
		t.Errorf("both blocks should be sandbox errors:\n%s", out)
	}
}

func TestRun_MissingBinaryIsSandboxError(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), "# Tools\n\n```sh\ndefinitely-not-a-binary-xyz\necho hi\n```\n")

	out, _, err := execute(t, nil, doc)
	if code := exitCode(err); code != report.ExitSandbox {
		t.Fatalf("exit code = %d, want %d (err %v)", code, report.ExitSandbox, err)
	}
	if !strings.Contains(out, "1 sandbox error") {
		t.Errorf("block should be a sandbox error:\n%s", out)
	}
	if strings.Contains(out, "$ echo hi") {
		t.Errorf("line after missing binary was started:\n%s", out)
	}
}

func TestRun_WasmFallsBackToHost(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), passingDoc)

	out, _, err := execute(t, nil, "--sandbox", "wasm", doc)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	for _, want := range []string{"wasm(host-fallback)", "hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestRun_DiscoveryError(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), "```sh runme:name=x\necho 1\n```\n\n```sh runme:name=x\necho 2\n```\n")

	_, _, err := execute(t, nil, doc)
	if code := exitCode(err); code != report.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, report.ExitUsage)
	}
	if err == nil || !strings.Contains(err.Error(), "discovery failed") {
		t.Errorf("error = %v, want discovery failure", err)
	}
}

func TestRun_MissingDocument(t *testing.T) {
	_, _, err := execute(t, nil, filepath.Join(t.TempDir(), "README.md"))
	if code := exitCode(err); code != report.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, report.ExitUsage)
	}
}

func TestRun_BadFlagValue(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), passingDoc)
	_, _, err := execute(t, nil, "--timeout", "soon", doc)
	if code := exitCode(err); code != report.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, report.ExitUsage)
	}
}

func TestList(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), passingDoc)

	out, _, err := execute(t, nil, "list", doc)
	if err != nil {
		t.Fatal(err)
	}
	want := "- block-001 (greet) [bash] Guide\n- block-002 [python] Guide\n"
	if out != want {
		t.Errorf("list output:\n%s\nwant:\n%s", out, want)
	}
	if strings.Contains(out, "hello") {
		t.Error("list must not execute blocks")
	}

	out, _, err = execute(t, nil, "list", "--format", "json", doc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded report.ListDocument
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("list JSON: %v", err)
	}
	if len(decoded.Blocks) != 2 || decoded.Blocks[0].Name != "greet" {
		t.Errorf("blocks = %+v", decoded.Blocks)
	}
}

func TestRecordAndHistory(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, passingDoc)
	dbPath := filepath.Join(dir, "history.db")
	cfgPath := filepath.Join(dir, "runme.toml")
	os.WriteFile(cfgPath, []byte("[history]\ndatabase_path = \""+filepath.ToSlash(dbPath)+"\"\n"), 0644)

	if _, _, err := execute(t, nil, "--config", cfgPath, doc); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dbPath); err == nil {
		t.Fatal("history should not be written without --record")
	}

	if _, _, err := execute(t, nil, "--config", cfgPath, "--record", doc); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, nil, "--config", cfgPath, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, doc) || !strings.Contains(out, "1 ok, 0 failed, 1 skipped") {
		t.Errorf("history output:\n%s", out)
	}

	out, _, err = execute(t, nil, "--config", cfgPath, "history", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var runs []map[string]any
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) != 1 {
		t.Errorf("history JSON = %s (%v)", out, err)
	}
}

func TestFrontmatterOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "---\nrunme:\n  sandbox: docker\n---\n# Doc\n\n```sh\necho hi\n```\n")
	os.WriteFile(filepath.Join(dir, ".runme.toml"), []byte("[sandbox]\nkind = \"host\"\nengine = \"/nonexistent/docker\"\n"), 0644)

	// frontmatter selects docker over the project file; the flag wins over both
	_, _, err := execute(t, nil, doc)
	if code := exitCode(err); code != report.ExitSandbox {
		t.Errorf("exit code = %d, want %d from the docker sandbox", code, report.ExitSandbox)
	}
	_, _, err = execute(t, nil, "--sandbox", "host", doc)
	if err != nil {
		t.Errorf("--sandbox host error = %v", err)
	}
}

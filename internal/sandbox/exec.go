package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chojs23/runme/internal/domain"
)

// Output is what one finished process produced
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// execute runs argv directly, without a shell, capturing stdout and stderr
// separately. A timeout kills the whole process group and is reported in
// Output.TimedOut. Cancellation of ctx returns ctx.Err() alongside whatever
// output was captured.
func execute(ctx context.Context, argv []string, dir string, timeout time.Duration) (Output, error) {
	out := Output{ExitCode: domain.NoExitCode}
	if len(argv) == 0 {
		return out, errors.New("empty command")
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return out, fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return out, err
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdoutBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderr)
		return err
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	out.Duration = time.Since(start)
	out.Stdout = stdoutBuf.String()
	out.Stderr = stderrBuf.String()

	switch {
	case ctx.Err() != nil:
		return out, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.TimedOut = true
		return out, nil
	case waitErr == nil:
		out.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("waiting for %s: %w", argv[0], waitErr)
		}
		out.ExitCode = exitStatus(exitErr.ProcessState)
	}

	if copyErr != nil && !errors.Is(copyErr, os.ErrClosed) {
		return out, fmt.Errorf("capturing output: %w", copyErr)
	}
	return out, nil
}

// lineResult converts process output into the result of one command line
func lineResult(line domain.CommandLine, out Output) domain.LineResult {
	r := domain.LineResult{
		Number:   line.Number,
		Command:  line.Text,
		ExitCode: out.ExitCode,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		TimedOut: out.TimedOut,
	}
	if out.TimedOut {
		r.ExitCode = domain.NoExitCode
	}
	r.SetDuration(out.Duration)
	return r
}

// interruptedResult records a line cut short by cancellation
func interruptedResult(line domain.CommandLine, out Output) domain.LineResult {
	r := lineResult(line, out)
	r.ExitCode = domain.NoExitCode
	r.Error = "interrupted"
	return r
}

// lexErrorResult records a line that could not be tokenized
func lexErrorResult(line domain.CommandLine) domain.LineResult {
	return domain.LineResult{
		Number:   line.Number,
		Command:  line.Text,
		ExitCode: domain.NoExitCode,
		Error:    line.Err.Error(),
	}
}

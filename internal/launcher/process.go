// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/teereader"
)

const (
	// maxStderrLine bounds the stderr line attached to exit errors.
	maxStderrLine = 200
	// maxLoggedStderrLine bounds a single stderr line written to the log.
	maxLoggedStderrLine = 4096
)

var (
	// ErrLaunch is wrapped by every *LaunchError.
	ErrLaunch = errors.New("failed to launch language server")
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrNotExecutable is returned when the server path is a directory or lacks the executable bit.
	ErrNotExecutable = errors.New("not an executable file")
)

var _ io.ReadWriteCloser = (*Process)(nil)

// LaunchError reports a language server that could not be started.
type LaunchError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLaunch, e.Path, e.Err)
}

// Unwrap allows errors.Is to match both ErrLaunch and the cause.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunch, e.Err}
}

// Process is a running language server. Reads come from its stdout and
// writes go to its stdin; stderr lines are logged at debug level.
type Process struct {
	ps     *os.Process
	stdin  *os.File
	stdout *os.File

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
	state     *os.ProcessState
	done      chan struct{}
	stderrWg  sync.WaitGroup
	stderr    *teereader.LastLineTeeReader
}

// Spawn starts the executable with its standard streams attached to pipes.
// The process is killed when ctx is done.
func Spawn(ctx context.Context, executablePath, workDir string, args ...string) (*Process, error) {
	logger := ctxlog.Logger(ctx).With("path", executablePath)

	if err := checkExecutable(executablePath); err != nil {
		return nil, &LaunchError{Path: executablePath, Err: err}
	}

	rIn, wIn, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Path: executablePath, Err: errors.Join(ErrFailedToCreatePipe, err)}
	}

	rOut, wOut, err := os.Pipe()
	if err != nil {
		closeAll(rIn, wIn)
		return nil, &LaunchError{Path: executablePath, Err: errors.Join(ErrFailedToCreatePipe, err)}
	}

	rErr, wErr, err := os.Pipe()
	if err != nil {
		closeAll(rIn, wIn, rOut, wOut)
		return nil, &LaunchError{Path: executablePath, Err: errors.Join(ErrFailedToCreatePipe, err)}
	}

	argv := slices.Concat([]string{filepath.Base(executablePath)}, args)

	logger.Debug("starting language server", "cwd", workDir, "args", args)

	ps, err := os.StartProcess(executablePath, argv, &os.ProcAttr{
		Dir:   workDir,
		Env:   os.Environ(),
		Files: []*os.File{rIn, wOut, wErr},
	})

	// The child holds its own copies of these ends.
	closeAll(rIn, wOut, wErr)

	if err != nil {
		closeAll(wIn, rOut, rErr)
		return nil, &LaunchError{Path: executablePath, Err: err}
	}

	logger.Debug("language server started", "pid", ps.Pid)

	p := &Process{
		ps:     ps,
		stdin:  wIn,
		stdout: rOut,
		done:   make(chan struct{}),
		stderr: teereader.NewLastLineTeeReader(rErr),
	}

	p.stderrWg.Add(1)

	go p.logStderr(ctx, rErr)
	go p.reap()
	go p.watch(ctx)

	return p, nil
}

// Read reads from the server's stdout.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Write writes to the server's stdin.
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close closes both pipes. A well-behaved server exits once its stdin is closed.
func (p *Process) Close() error {
	var err error

	p.closeOnce.Do(func() {
		err = errors.Join(p.stdin.Close(), p.stdout.Close())
	})

	return err
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.ps.Pid
}

// Wait blocks until the process exits and returns a non-nil error for a
// non-zero exit code. It is safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.state, p.waitErr = p.ps.Wait()
		p.stderrWg.Wait()

		if p.waitErr == nil && !p.state.Success() {
			p.waitErr = fmt.Errorf("language server exited: %s", p.state.String())

			if last := p.stderr.GetLastLine(maxStderrLine); last != "" {
				p.waitErr = fmt.Errorf("%w: %s", p.waitErr, last)
			}
		}

		close(p.done)
	})

	return p.waitErr
}

// Kill terminates the process immediately.
func (p *Process) Kill(ctx context.Context) {
	killPs(ctx, p.ps)
}

// LastStderrLine returns the last complete line the server wrote to stderr.
func (p *Process) LastStderrLine() string {
	return p.stderr.GetLastLine(maxStderrLine)
}

// Exited is closed once the process has exited and its stderr is drained.
func (p *Process) Exited() <-chan struct{} {
	return p.done
}

func (p *Process) reap() {
	_ = p.Wait()
}

func (p *Process) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		ctxlog.Debug(ctx, "context done, killing language server", "pid", p.ps.Pid)
		killPs(ctx, p.ps)
	case <-p.done:
	}
}

func (p *Process) logStderr(ctx context.Context, r *os.File) {
	defer p.stderrWg.Done()
	defer r.Close() //nolint:errcheck

	logger := ctxlog.Logger(ctx).With("source", "server-stderr", "pid", p.ps.Pid)

	// Lines longer than the buffer are logged truncated and the rest skipped.
	// Reading never stops early: a closed pipe would SIGPIPE the server.
	br := bufio.NewReaderSize(p.stderr, maxLoggedStderrLine)
	skipping := false

	for {
		line, more, err := br.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("stderr read stopped", "error", err)
			}

			return
		}

		if !skipping && len(line) > 0 {
			if more {
				logger.Debug(string(line), "truncated", true)
			} else {
				logger.Debug(string(line))
			}
		}

		skipping = more
	}
}

func killPs(ctx context.Context, ps *os.Process) {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			ctxlog.Logger(ctx).Debug("process already done", "pid", ps.Pid)
			return
		}

		ctxlog.Logger(ctx).Error("process kill error", "pid", ps.Pid, "error", err)

		return
	}

	ctxlog.Logger(ctx).Info("process killed", "pid", ps.Pid)
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

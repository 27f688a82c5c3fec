// Package runner launches external tool processes, streams their output line
// by line, and stops them on cancellation or timeout. A stopped process gets
// SIGTERM first and is killed after a grace period; the whole process group
// is signalled so helpers spawned by the tool do not outlive it.
package runner

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/logging"
)

const (
	// DefaultGracePeriod is how long a process may take to exit after SIGTERM.
	DefaultGracePeriod = 5 * time.Second

	lineBufferSize   = 256
	stderrTailLines  = 20
	maxLineBytes     = 1024 * 1024
	maxStdoutBytes   = 256 * 1024 * 1024
	initialLineBytes = 64 * 1024
)

// Stream identifies which pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of process output.
type Line struct {
	Stream Stream
	Text   string
}

// Command describes a process to launch.
type Command struct {
	Path        string
	Args        []string
	Env         []string
	Dir         string
	Timeout     time.Duration
	GracePeriod time.Duration
}

// Result is the outcome of a finished process.
type Result struct {
	Path       string
	Args       []string
	Started    time.Time
	Stopped    time.Time
	ExitCode   int
	Stdout     []byte
	Truncated  bool
	StderrTail []string
	// Err is nil only when the process exited with status zero on its own.
	Err error
}

// Duration is how long the process ran.
func (r Result) Duration() time.Duration {
	return r.Stopped.Sub(r.Started)
}

type stopReason int

const (
	stopNone stopReason = iota
	stopCancelled
	stopTimeout
)

// Process is a running tool process.
type Process struct {
	cmd    *exec.Cmd
	logger *logging.Logger
	grace  time.Duration

	lines  chan Line
	cancel chan struct{}
	exited chan struct{}
	done   chan struct{}

	cancelOnce sync.Once

	mu         sync.Mutex
	reason     stopReason
	stdout     bytes.Buffer
	truncated  bool
	stderrTail []string
	result     Result
}

// Runner starts processes.
type Runner struct {
	logger *logging.Logger
}

// New creates a runner.
func New() *Runner {
	return &Runner{logger: logging.Default().WithComponent("runner")}
}

// Start launches cmd and returns once the process is running. The process is
// stopped when ctx ends, when cmd.Timeout elapses, or when Cancel is called.
func (r *Runner) Start(ctx context.Context, c Command) (*Process, error) {
	path, err := exec.LookPath(c.Path)
	if err != nil {
		return nil, classifyLaunchError(c.Path, err)
	}

	cmd := exec.Command(path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Dir = c.Dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.WrapScanError(errors.CodeLaunchFailed, "Failed to open stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.WrapScanError(errors.CodeLaunchFailed, "Failed to open stderr", err)
	}

	grace := c.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	p := &Process{
		cmd:    cmd,
		logger: r.logger.WithFields("path", c.Path),
		grace:  grace,
		lines:  make(chan Line, lineBufferSize),
		cancel: make(chan struct{}),
		exited: make(chan struct{}),
		done:   make(chan struct{}),
		result: Result{Path: c.Path, Args: append([]string(nil), c.Args...)},
	}

	p.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		return nil, classifyLaunchError(c.Path, err)
	}
	p.logger.Debug("Process started", "pid", cmd.Process.Pid, "args", strings.Join(c.Args, " "))

	var readers sync.WaitGroup
	readers.Add(2)
	go p.read(stdout, Stdout, &readers)
	go p.read(stderr, Stderr, &readers)
	go p.wait(&readers)
	go p.supervise(ctx, c.Timeout)

	return p, nil
}

func classifyLaunchError(path string, err error) error {
	if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist) {
		return errors.ErrToolNotFound(path).WithOperation("launch")
	}
	return errors.WrapScanError(errors.CodeLaunchFailed, fmt.Sprintf("Failed to launch %s", path), err)
}

func (p *Process) read(r io.Reader, stream Stream, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialLineBytes), maxLineBytes)
	for scanner.Scan() {
		text := scanner.Text()

		p.mu.Lock()
		if stream == Stdout {
			if p.stdout.Len()+len(text)+1 <= maxStdoutBytes {
				p.stdout.WriteString(text)
				p.stdout.WriteByte('\n')
			} else {
				p.truncated = true
			}
		} else {
			p.stderrTail = append(p.stderrTail, text)
			if len(p.stderrTail) > stderrTailLines {
				p.stderrTail = p.stderrTail[len(p.stderrTail)-stderrTailLines:]
			}
		}
		p.mu.Unlock()

		// Lines are advisory; a slow consumer loses lines, never output.
		select {
		case p.lines <- Line{Stream: stream, Text: text}:
		default:
		}
	}
	if err := scanner.Err(); err != nil && !stderrors.Is(err, os.ErrClosed) {
		p.logger.Warn("Failed reading process output", "stream", stream.String(), "error", err)
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (p *Process) wait(readers *sync.WaitGroup) {
	readers.Wait()
	waitErr := p.cmd.Wait()
	close(p.exited)
	close(p.lines)

	p.mu.Lock()
	defer p.mu.Unlock()

	res := &p.result
	res.Stopped = time.Now().UTC()
	res.Stdout = p.stdout.Bytes()
	res.Truncated = p.truncated
	res.StderrTail = append([]string(nil), p.stderrTail...)
	res.ExitCode = -1
	if p.cmd.ProcessState != nil {
		res.ExitCode = p.cmd.ProcessState.ExitCode()
	}

	switch {
	case p.reason == stopCancelled:
		res.Err = errors.NewScanError(errors.CodeCancelled, "Process cancelled").WithContext("path", res.Path)
	case p.reason == stopTimeout:
		res.Err = errors.NewScanError(errors.CodeTimeout, "Process timed out").WithContext("path", res.Path)
	case waitErr != nil:
		msg := fmt.Sprintf("Process exited with status %d", res.ExitCode)
		if tail := lastNonEmpty(res.StderrTail); tail != "" {
			msg += ": " + tail
		}
		res.Err = errors.WrapScanError(errors.CodeNonZeroExit, msg, waitErr).
			WithContext("exit_code", res.ExitCode)
	}

	p.logger.Debug("Process exited", "exit_code", res.ExitCode, "duration", res.Duration())
	close(p.done)
}

// supervise stops the process on cancellation, context end, or timeout.
func (p *Process) supervise(ctx context.Context, timeout time.Duration) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	var reason stopReason
	select {
	case <-p.exited:
		return
	case <-p.cancel:
		reason = stopCancelled
	case <-ctx.Done():
		reason = stopCancelled
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = stopTimeout
		}
	case <-timer:
		reason = stopTimeout
	}

	p.mu.Lock()
	p.reason = reason
	p.mu.Unlock()

	p.logger.Debug("Stopping process", "pid", p.cmd.Process.Pid, "timeout", reason == stopTimeout)
	if err := terminate(p.cmd); err != nil {
		p.logger.Debug("Terminate signal failed", "error", err)
	}

	grace := time.NewTimer(p.grace)
	defer grace.Stop()
	select {
	case <-p.exited:
	case <-grace.C:
		p.logger.Warn("Process ignored SIGTERM, killing", "pid", p.cmd.Process.Pid)
		if err := kill(p.cmd); err != nil {
			p.logger.Debug("Kill failed", "error", err)
		}
	}
}

// Lines streams output lines; the channel closes once the process has exited.
func (p *Process) Lines() <-chan Line {
	return p.lines
}

// Cancel asks the process to stop. It is safe to call more than once and
// after the process has exited.
func (p *Process) Cancel() {
	p.cancelOnce.Do(func() { close(p.cancel) })
}

// Wait blocks until the process exits and returns its result.
func (p *Process) Wait() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

func lastNonEmpty(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

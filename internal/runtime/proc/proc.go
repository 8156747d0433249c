// Package proc hosts a runtime in a child process.
//
// The child talks a line protocol. Its stdout and stderr are attached to a
// pseudo-terminal so it behaves as it would interactively; lifecycle
// notifications are written to its stdin.
//
//	child:  ready [handle]          handle defaults to the child's pid
//	host:   <event> <handle>        create, start, resume, pause, stop, restart, destroy
//	host:   new_intent <handle> <quoted action> <quoted data>
//	child:  ack <event>
//
// Every other line the child prints is logged as runtime output.
package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/sourcegraph/conc"

	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/logging"
	"github.com/actbridge/actbridge/internal/runtime"
)

// ExitCodeStartFailure is returned by Start when the child could not be launched.
const ExitCodeStartFailure = 127

// drainTimeout bounds how long Start waits for trailing output after the child exits.
const drainTimeout = 500 * time.Millisecond

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEnv appends environment variables for the child.
func WithEnv(env ...string) Option {
	return func(r *Runtime) {
		r.env = append(r.env, env...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(r *Runtime) {
		r.dir = dir
	}
}

// Runtime runs command as the hosted runtime.
type Runtime struct {
	command []string
	env     []string
	dir     string
	logger  *logging.Logger

	writeMu sync.Mutex
	stdin   io.WriteCloser

	ready  chan runtime.Handle
	acks   chan string
	exited chan struct{}
	wg     conc.WaitGroup
}

var _ runtime.Runtime = (*Runtime)(nil)

// New creates a Runtime for command. The command is not started until Start.
func New(command []string, opts ...Option) *Runtime {
	r := &Runtime{
		command: command,
		logger:  logging.NopLogger(),
		ready:   make(chan runtime.Handle, 1),
		acks:    make(chan string, 16),
		exited:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("runtime-proc")
	return r
}

// Start implements runtime.Runtime. It launches the child, signals readiness
// once the child reports it, and returns the child's exit code.
func (r *Runtime) Start(ch *runtime.Handoff) int {
	defer close(r.exited)

	cmd, ptmx, err := r.launch()
	if err != nil {
		r.logger.Error("failed to launch runtime", "error", err)
		return ExitCodeStartFailure
	}
	pid := cmd.Process.Pid
	r.logger.Info("runtime launched", "pid", pid, "command", strings.Join(r.command, " "))

	readerDone := make(chan struct{})
	r.wg.Go(func() {
		defer close(readerDone)
		r.readLines(ptmx, pid)
	})

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var exitErr error
	select {
	case h := <-r.ready:
		if err := runtime.ContinueWith(ch, h); err != nil {
			r.logger.Error("invalid readiness signal, killing runtime", "handle", uint64(h), "error", err)
			_ = cmd.Process.Kill()
		}
		exitErr = <-waitErr
	case exitErr = <-waitErr:
		select {
		case <-readerDone:
		case <-time.After(drainTimeout):
		}
		select {
		case h := <-r.ready:
			// Ready was printed right before exit.
			if err := runtime.ContinueWith(ch, h); err != nil {
				r.logger.Error("invalid readiness signal", "handle", uint64(h), "error", err)
			}
		default:
			r.logger.Warn("runtime exited before signalling readiness")
		}
	}

	select {
	case <-readerDone:
	case <-time.After(drainTimeout):
	}
	_ = ptmx.Close()
	r.wg.Wait()

	code := exitCode(exitErr)
	r.logger.Info("runtime exited", "pid", pid, "exit_code", code)
	return code
}

func (r *Runtime) launch() (*exec.Cmd, *os.File, error) {
	if len(r.command) == 0 {
		return nil, nil, errors.NewRuntimeError("launch", errors.ErrEmptyCommand).WithKind("process")
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, nil, errors.NewRuntimeError("open pty", err).WithKind("process")
	}
	defer func() { _ = tty.Close() }()

	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = ptmx.Close()
		return nil, nil, errors.NewRuntimeError("stdin pipe", err).WithKind("process")
	}
	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		return nil, nil, errors.NewRuntimeError("start", err).WithKind("process")
	}

	r.writeMu.Lock()
	r.stdin = stdin
	r.writeMu.Unlock()
	return cmd, ptmx, nil
}

// readLines routes child output until the pty closes.
func (r *Runtime) readLines(ptmx io.Reader, pid int) {
	scanner := bufio.NewScanner(ptmx)
	signalled := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		fields := strings.Fields(line)

		switch {
		case len(fields) > 0 && fields[0] == "ready" && !signalled:
			signalled = true
			r.ready <- parseHandle(fields[1:], pid)
		case len(fields) == 2 && fields[0] == "ack":
			select {
			case r.acks <- fields[1]:
			default:
				r.logger.Warn("dropping unexpected ack", "event", fields[1])
			}
		default:
			r.logger.Info("runtime output", "line", line)
		}
	}
}

func parseHandle(args []string, pid int) runtime.Handle {
	if len(args) == 0 {
		return runtime.Handle(pid)
	}
	v, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return runtime.Handle(pid)
	}
	return runtime.Handle(v)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// send writes one notification and waits for its ack or for the child to exit.
func (r *Runtime) send(event string, h runtime.Handle, args ...string) {
	line := fmt.Sprintf("%s %d", event, uint64(h))
	for _, a := range args {
		line += " " + strconv.Quote(a)
	}

	r.writeMu.Lock()
	stdin := r.stdin
	r.writeMu.Unlock()
	if stdin == nil {
		r.logger.Warn("runtime not running, dropping notification", "event", event)
		return
	}
	if _, err := io.WriteString(stdin, line+"\n"); err != nil {
		r.logger.Warn("failed to write notification", "event", event, "error", err)
		return
	}

	for {
		select {
		case ack := <-r.acks:
			if ack == event {
				return
			}
			r.logger.Warn("out of order ack", "want", event, "got", ack)
		case <-r.exited:
			r.logger.Warn("runtime exited before acknowledging", "event", event)
			return
		}
	}
}

func (r *Runtime) OnCreate(h runtime.Handle)  { r.send("create", h) }
func (r *Runtime) OnStart(h runtime.Handle)   { r.send("start", h) }
func (r *Runtime) OnResume(h runtime.Handle)  { r.send("resume", h) }
func (r *Runtime) OnPause(h runtime.Handle)   { r.send("pause", h) }
func (r *Runtime) OnStop(h runtime.Handle)    { r.send("stop", h) }
func (r *Runtime) OnRestart(h runtime.Handle) { r.send("restart", h) }
func (r *Runtime) OnDestroy(h runtime.Handle) { r.send("destroy", h) }

// OnNewIntent sends the action and data as Go-quoted strings.
func (r *Runtime) OnNewIntent(h runtime.Handle, action, data string) {
	r.send("new_intent", h, action, data)
}

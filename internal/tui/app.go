// Package tui is the interactive bridge console.
//
// The console is the bridge's UI goroutine: each command typed is executed
// synchronously inside Update, and bus events are streamed into the log.
package tui

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/actbridge/actbridge/internal/event"
)

// feedSize bounds the number of undelivered log messages.
const feedSize = 256

// App wraps the Bubbletea program
type App struct {
	status Status
	bus    *event.Bus
	feed   chan tea.Msg

	mu      sync.Mutex
	program *tea.Program
}

// New creates a console for status, streaming events from bus.
func New(status Status, bus *event.Bus) *App {
	return &App{
		status: status,
		bus:    bus,
		feed:   make(chan tea.Msg, feedSize),
	}
}

// push queues msg for the log, dropping it when the console is behind.
// Publishers run on arbitrary goroutines, including inside Update, so this
// must never block.
func (a *App) push(msg tea.Msg) {
	select {
	case a.feed <- msg:
	default:
	}
}

// Output returns a writer whose lines appear in the console log.
func (a *App) Output() io.Writer {
	return &feedWriter{app: a}
}

// Run starts the console and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context, stepper Stepper) error {
	var subID string
	if a.bus != nil {
		subID = a.bus.SubscribeAll(func(e event.Event) {
			a.push(eventMsg{event: e})
		})
		defer a.bus.Unsubscribe(subID)
	}

	model := NewModel(ctx, a.status, stepper, a.feed)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	a.mu.Lock()
	a.program = program
	a.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		if _, ok := <-sigChan; ok {
			program.Send(tea.Quit())
		}
	}()

	_, err := program.Run()

	a.mu.Lock()
	a.program = nil
	a.mu.Unlock()
	signal.Stop(sigChan)
	close(sigChan)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Release restores the terminal while the console is running. It is a no-op
// otherwise. Register it as a host terminate hook so the terminal is usable
// when the process exits from inside the console.
func (a *App) Release() {
	a.mu.Lock()
	program := a.program
	a.mu.Unlock()
	if program != nil {
		_ = program.ReleaseTerminal()
	}
}

// feedWriter turns written text into log lines.
type feedWriter struct {
	app *App
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *feedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.app.push(outputMsg(line[:len(line)-1]))
	}
	return len(p), nil
}

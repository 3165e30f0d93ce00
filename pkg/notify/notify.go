// Package notify delivers short user-visible notifications ("toasts") raised
// by the state stores.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier must be safe for concurrent use; stores call it from request
// goroutines and from push handlers.
type Notifier interface {
	Success(message string)
	Error(message string)
}

type Toast struct {
	Level   Level
	Message string
	At      time.Time
}

// Console prints coloured toasts to a terminal.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	success *color.Color
	failure *color.Color
}

func NewConsole(w io.Writer) *Console {
	return &Console{
		w:       w,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed, color.Bold),
	}
}

func (c *Console) Success(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.success.Fprintf(c.w, "✔ %s\n", message)
}

func (c *Console) Error(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.failure.Fprintf(c.w, "✖ %s\n", message)
}

// Logger records toasts in the log. Errors log at info, successes at debug,
// since the user has already seen them.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Success(message string) {
	l.logger.Debug().Str("toast", string(LevelSuccess)).Msg(message)
}

func (l *Logger) Error(message string) {
	l.logger.Info().Str("toast", string(LevelError)).Msg(message)
}

// Recorder keeps every toast in memory.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Success(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) Error(message string)   { r.add(LevelError, message) }

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: message, At: time.Now()})
}

func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last returns the most recent toast, or false when none was recorded.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}

func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.toasts {
		if t.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = nil
}

type nop struct{}

func (nop) Success(string) {}
func (nop) Error(string)   {}

// Nop discards every toast.
var Nop Notifier = nop{}

// Multi fans out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

type multi []Notifier

func (m multi) Success(message string) {
	for _, n := range m {
		n.Success(message)
	}
}

func (m multi) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

func (t Toast) String() string {
	return fmt.Sprintf("[%s] %s", t.Level, t.Message)
}

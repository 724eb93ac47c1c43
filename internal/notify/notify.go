// Package notify carries user-visible success and error messages to
// whatever surfaces are listening.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/inkwell/internal/apperr"
)

type Severity int

const (
	Info Severity = iota
	Success
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Notification is one message for the user.
type Notification struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Time     time.Time `json:"time"`
}

// Sink receives notifications. Implementations must not block for long.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification)

func (f SinkFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(context.Context, Notification) {})

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	switch n.Severity {
	case Warning:
		level = slog.LevelWarn
	case Error:
		level = slog.LevelError
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, level, "notify: "+n.Message, slog.String("severity", n.Severity.String()))
}

// Fanout delivers to every sink in order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// Send stamps and delivers a message.
func Send(ctx context.Context, sink Sink, sev Severity, format string, args ...any) {
	if sink == nil {
		return
	}
	sink.Notify(ctx, Notification{Message: fmt.Sprintf(format, args...), Severity: sev, Time: time.Now()})
}

// Silent reports errors that are never shown to the user: cancellations
// and superseded scans.
func Silent(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, apperr.ErrSuperseded)
}

// Failure delivers "<what>: <err>" with severity Error unless err is Silent.
// It reports whether anything was sent.
func Failure(ctx context.Context, sink Sink, what string, err error) bool {
	if err == nil || Silent(err) {
		return false
	}
	Send(ctx, sink, Error, "%s: %v", what, err)
	return true
}

package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/env"
	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Output      io.Writer
}

type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	var output io.Writer = opts.Output
	if output == nil {
		output = os.Stdout
	}
	if env.Get("LOG_FORMAT", "json") == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
			NoColor:    env.GetBool("LOG_NO_COLOR", false),
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.
		New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level).
		Hook(scopeHook)

	return &Logger{
		base:      &logger,
		warnStack: opts.WarnStack,
	}
}

// Nop returns a logger that discards every entry.
func Nop() *Logger {
	return New(Options{ServiceName: "nop", Level: zerolog.Disabled, Output: io.Discard})
}

func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

func (l *Logger) loggerFromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return l.base
	}
	if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return entry
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, entry zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entr := entry
	return context.WithValue(ctx, ctxKey{}, &entr)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	entry := l.loggerFromContext(ctx)
	return l.attach(ctx, entry.With().Interface(key, value).Logger())
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	entry := l.loggerFromContext(ctx)
	builder := entry.With()
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}
	return l.attach(ctx, builder.Logger())
}

// Scope carries the storefront identifiers a log line is about. It travels in
// the context separately from ad-hoc fields so that setting a value twice
// replaces it instead of emitting the key twice.
type Scope struct {
	RequestID    string
	CustomerCode string
	OrderNumber  string
	Operation    string
}

type scopeKey struct{}

// ScopeFrom returns the scope stored in ctx, if any.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// RequestID returns the request id carried by ctx.
func RequestID(ctx context.Context) string {
	return ScopeFrom(ctx).RequestID
}

// CustomerCode returns the customer code carried by ctx.
func CustomerCode(ctx context.Context) string {
	return ScopeFrom(ctx).CustomerCode
}

func withScope(ctx context.Context, update func(*Scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := ScopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return withScope(ctx, func(s *Scope) { s.RequestID = requestID })
}

func (l *Logger) WithCustomerCode(ctx context.Context, customerCode string) context.Context {
	return withScope(ctx, func(s *Scope) { s.CustomerCode = customerCode })
}

func (l *Logger) WithOrderNumber(ctx context.Context, docNo string) context.Context {
	return withScope(ctx, func(s *Scope) { s.OrderNumber = docNo })
}

func (l *Logger) WithOperation(ctx context.Context, op string) context.Context {
	return withScope(ctx, func(s *Scope) { s.Operation = op })
}

// scopeHook stamps the non-empty scope values onto every event.
var scopeHook = zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
	s, ok := e.GetCtx().Value(scopeKey{}).(Scope)
	if !ok {
		return
	}
	if s.RequestID != "" {
		e.Str("request_id", s.RequestID)
	}
	if s.CustomerCode != "" {
		e.Str("cust_code", s.CustomerCode)
	}
	if s.OrderNumber != "" {
		e.Str("doc_no", s.OrderNumber)
	}
	if s.Operation != "" {
		e.Str("operation", s.Operation)
	}
})

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.event(ctx, zerolog.DebugLevel).Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.event(ctx, zerolog.InfoLevel).Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.event(ctx, zerolog.WarnLevel)
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.event(ctx, zerolog.ErrorLevel)
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func (l *Logger) event(ctx context.Context, level zerolog.Level) *zerolog.Event {
	event := l.loggerFromContext(ctx).WithLevel(level)
	if ctx != nil {
		event = event.Ctx(ctx)
	}
	return event
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}

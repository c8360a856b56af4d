// Package logging builds the zerolog loggers used by the twoslash commands.
package logging

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// RunID identifies the current process in every log line.
var RunID = xid.New().String()

type Options struct {
	Level zerolog.Level
	// Console switches from JSON lines to the human readable console format.
	Console bool
	Color   bool
}

// New returns a logger writing to w with the time and caller hooks installed.
func New(w io.Writer, opts Options) zerolog.Logger {
	if opts.Console {
		w = zerolog.ConsoleWriter{
			Out:     w,
			NoColor: !opts.Color,
			FormatCaller: func(i any) string {
				s, _ := i.(string)
				return s
			},
		}
	}

	return zerolog.New(w).
		Level(opts.Level).
		With().
		Str("run", RunID).
		Logger().
		Hook(TimeHook{}).
		Hook(CallerHook{WithColor: opts.Console && opts.Color})
}

// WithLogger attaches a logger built by New to ctx.
func WithLogger(ctx context.Context, w io.Writer, opts Options) context.Context {
	return New(w, opts).WithContext(ctx)
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string, debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	if name == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func callerSkipFrameCount(e *zerolog.Event) int {
	v := reflect.ValueOf(e).Elem()
	field := v.FieldByName("skipFrame")
	if field.IsValid() {
		return int(field.Int())
	}
	return 0
}

type TimeHook struct {
	Format string
}

func (t TimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if t.Format == "" {
		e.Str("time", time.Now().Format("2006-01-02T15:04:05.0000Z"))
		return
	}
	e.Str("time", time.Now().Format(t.Format))
}

type CallerHook struct {
	WithColor bool
}

func (c CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(callerSkipFrameCount(e) + 3)
	if !ok {
		return
	}

	pkg := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		pkg, _ = SplitFuncName(fn.Name())
	}

	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

// SplitFuncName splits a runtime function name into its package path and the
// function, receiver included.
func SplitFuncName(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}

	firstDot := strings.IndexByte(name[lastSlash:], '.') + lastSlash
	if firstDot < lastSlash {
		return name, ""
	}

	pkg = name[:firstDot]
	function = name[firstDot+1:]

	if strings.Contains(pkg, ".(") {
		parts := strings.SplitN(pkg, ".(", 2)
		pkg = parts[0]
		function = "(" + parts[1] + "." + function
	}

	return pkg, function
}

func FormatCaller(pkg, path string, line int, colorize bool) string {
	file := fileName(path)
	if colorize {
		file = color.New(color.Bold).Sprint(file)
		num := color.New(color.FgHiRed, color.Bold).Sprintf("%d", line)
		sep := color.New(color.Faint).Sprint(":")
		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, file, sep, num)
	}
	return fmt.Sprintf("%s:%s:%d", pkg, file, line)
}

func fileName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Package diag is the allocator's logging and fatal-error sink.
//
// L is a structured logger that discards everything until Init enables it.
// Fatal bypasses the logger entirely: it formats into a fixed buffer and issues a
// single raw write to stderr before exiting, so it never goes through buffered I/O
// and never calls back into an allocator that may be in a corrupt state.
package diag

import (
	"io"
	"log/slog"
	"os"
	"strconv"
)

// EnvLog enables debug logging of allocation events when set to a non-empty value.
const EnvLog = "SPANALLOC_LOG"

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Use the JSON handler instead of the text handler
}

// Init configures logging. Call before any allocator is created.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, hopts))
		return
	}
	L = slog.New(slog.NewTextHandler(w, hopts))
}

// InitFromEnv enables debug logging to stderr when EnvLog is set.
func InitFromEnv() {
	if os.Getenv(EnvLog) == "" {
		return
	}
	Init(Options{Enabled: true, Level: slog.LevelDebug})
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }

const fatalPrefix = "*** spanalloc *** "

// exit is replaced in tests.
var exit = defaultExit

func defaultExit(code int) { os.Exit(code) }

// Fatal writes msg to stderr and terminates the process with status 1.
func Fatal(msg string) {
	writeStderr(appendFatal(make([]byte, 0, 256), msg, 0, false))
	exit(1)
}

// FatalAddr is Fatal with the offending address appended in hex.
func FatalAddr(msg string, addr uintptr) {
	writeStderr(appendFatal(make([]byte, 0, 256), msg, addr, true))
	exit(1)
}

func appendFatal(b []byte, msg string, addr uintptr, withAddr bool) []byte {
	b = append(b, fatalPrefix...)
	b = append(b, msg...)
	if withAddr {
		b = append(b, " (0x"...)
		b = strconv.AppendUint(b, uint64(addr), 16)
		b = append(b, ')')
	}
	return append(b, '\n')
}

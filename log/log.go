// Package log is the process-wide structured logger of the pool, a thin
// wrapper around zerolog with key/value helpers.
package log

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00" // like time.RFC3339Nano but with 3 fixed-width decimals
)

var levels = map[string]zerolog.Level{
	LogLevelDebug: zerolog.DebugLevel,
	LogLevelInfo:  zerolog.InfoLevel,
	LogLevelWarn:  zerolog.WarnLevel,
	LogLevelError: zerolog.ErrorLevel,
}

var (
	log   zerolog.Logger
	logMu sync.RWMutex
)

func init() {
	// $LOG_LEVEL applies to tests as well, and an initialized logger never
	// panics on first use.
	Init(cmp.Or(os.Getenv("LOG_LEVEL"), LogLevelError), "stderr", nil)
}

func getLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}

func setLogger(logger zerolog.Logger) {
	logMu.Lock()
	log = logger
	logMu.Unlock()
}

var logTestWriter io.Writer // for tests
const logTestWriterName = "log_test_writer"

// logTestTime keeps test output deterministic.
var logTestTime, _ = time.Parse(RFC3339Milli, "2006-01-02T15:04:05.000Z")

// errorLevelWriter forwards warnings and errors only.
type errorLevelWriter struct {
	io.Writer
}

var _ zerolog.LevelWriter = &errorLevelWriter{}

func (*errorLevelWriter) Write(_ []byte) (int, error) {
	panic("should be calling WriteLevel")
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// outputWriter resolves the output name. Files ending in .json receive raw
// JSON lines while the console keeps printing on stdout.
func outputWriter(output string) (console io.Writer, jsonFile io.Writer) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case logTestWriterName:
		return logTestWriter, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		panic(fmt.Sprintf("cannot create log output: %v", err))
	}
	if strings.HasSuffix(output, ".json") {
		return os.Stdout, f
	}
	return f, nil
}

// Init replaces the global logger. level must satisfy ValidLevel, output is
// stdout, stderr or a file path, and errorOutput, when set, also receives
// every warning and error without colors.
func Init(level, output string, errorOutput io.Writer) {
	lvl, ok := levels[level]
	if !ok {
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	console, jsonFile := outputWriter(output)
	outputs := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: RFC3339Milli}}
	if jsonFile != nil {
		outputs = append(outputs, jsonFile)
	}
	if errorOutput != nil {
		outputs = append(outputs, &errorLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: RFC3339Milli,
			NoColor:    true,
		}})
	}
	out := outputs[0]
	if len(outputs) > 1 {
		out = zerolog.MultiLevelWriter(outputs...)
	}

	if output == logTestWriterName {
		zerolog.TimestampFunc = func() time.Time { return logTestTime }
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	// skip the frames of this package
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}

	logger := zerolog.New(out).With().Timestamp().Caller().Logger().Level(lvl)
	setLogger(logger)
	logger.Debug().Str("level", level).Str("output", output).Msg("logger ready")
}

// ValidLevel reports whether level is one of the supported log levels.
func ValidLevel(level string) bool {
	_, ok := levels[level]
	return ok
}

// Level returns the current log level.
func Level() string {
	current := getLogger().GetLevel()
	for name, lvl := range levels {
		if lvl == current {
			return name
		}
	}
	panic(fmt.Sprintf("invalid log level: %q", current))
}

// Info sends an info level log message.
func Info(args ...any) {
	logger := getLogger()
	logger.Info().Msg(fmt.Sprint(args...))
}

// Warn sends a warn level log message.
func Warn(args ...any) {
	logger := getLogger()
	logger.Warn().Msg(fmt.Sprint(args...))
}

// Monitor logs a set of counters at info level without caller information.
func Monitor(msg string, fields map[string]any) {
	logger := getLogger()
	logger.Info().CallerSkipFrame(100).Fields(fields).Msg(msg)
}

// Fatalf logs a formatted message with the current stack and exits.
func Fatalf(template string, args ...any) {
	logger := getLogger()
	logger.Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	logger := getLogger()
	logger.Debug().Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	logger := getLogger()
	logger.Info().Fields(keyvalues).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	logger := getLogger()
	logger.Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs err at error level with key-value pairs.
func Errorw(err error, msg string, keyvalues ...any) {
	logger := getLogger()
	logger.Error().Err(err).Fields(keyvalues).Msg(msg)
}

package logx

import (
	"io"
	"os"
	"strings"

	"github.com/Chative-rag-chat/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment default (debug outside production, info in production).
	Level string
	// Output replaces stderr, e.g. a log file while a terminal UI owns the screen.
	Output io.Writer
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

func Init(otps ...LoggerOpts) {
	opts := safe(otps...)
	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Environment == core.Production {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		log.Logger = log.Logger.Level(resolveLevel(opts.Level, zerolog.InfoLevel))
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: opts.Output != nil, TimeFormat: "15:04:05"}).With().Timestamp().Caller().Logger()
		log.Logger = log.Logger.Level(resolveLevel(opts.Level, zerolog.DebugLevel))
	}
}

func resolveLevel(v string, fallback zerolog.Level) zerolog.Level {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		return fallback
	}
	return lvl
}

// With returns a child logger context for component-scoped fields.
func With() zerolog.Context {
	return log.Logger.With()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}

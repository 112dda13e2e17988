package monitoring

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// SetupLogging configures the global zerolog logger.
//
// Format "console" forces the human-readable writer and "json" forces JSON.
// Any other value picks console output when writing to a terminal. The
// returned closer releases a log file, if one was opened.
func SetupLogging(cfg LoggerConfig) (io.Closer, error) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out, closer, err := openLogOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tty := isTerminal(out)
	var w io.Writer = out
	switch {
	case cfg.Format == "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: !tty}
	case cfg.Format != "json" && tty:
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return closer, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogOutput(output string) (*os.File, io.Closer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	// #nosec G304 -- operator-supplied log path
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker writes one RequestEvent per proxied request as JSONL
// (one JSON object per line), appended immediately for real-time tailing.
// Events never contain credentials; only the auth scheme is recorded.
package monitoring

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/utils"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config         TelemetryConfig
	requestLogPath string
	requestCount   int
	mu             sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{
		config: cfg,
	}

	if !cfg.Enabled || cfg.LogPath == "" {
		return t, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
		return nil, err
	}
	t.requestLogPath = cfg.LogPath
	if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
		if f, err := os.Create(cfg.LogPath); err == nil {
			_ = f.Close()
		}
	}
	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := utils.MarshalNoEscape(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(data)
	return err
}

// RecordRequest records a request event.
func (t *Tracker) RecordRequest(event *RequestEvent) {
	if t == nil || !t.config.Enabled || event == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		log.Info().
			Str("request_id", event.RequestID).
			Str("target", event.Target).
			Str("outcome", event.Outcome).
			Int("status", event.StatusCode).
			Msg("telemetry")
	}

	if t.requestLogPath != "" {
		if err := appendJSONL(t.requestLogPath, event); err != nil {
			log.Error().Err(err).Str("path", t.requestLogPath).Msg("telemetry: failed to write request event")
		} else {
			t.requestCount++
		}
	}
}

// RecordInit writes the startup configuration snapshot.
func (t *Tracker) RecordInit(event *InitEvent) {
	if t == nil || !t.config.Enabled || event == nil || t.requestLogPath == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := appendJSONL(t.requestLogPath, event); err != nil {
		log.Error().Err(err).Str("path", t.requestLogPath).Msg("telemetry: failed to write init event")
	}
}

// Enabled reports whether events are being recorded.
func (t *Tracker) Enabled() bool {
	return t != nil && t.config.Enabled
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.requestLogPath != "" && t.requestCount > 0 {
		log.Info().
			Str("path", t.requestLogPath).
			Int("events", t.requestCount).
			Msg("telemetry: session complete")
	}
	return nil
}

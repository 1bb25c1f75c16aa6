// Package audit logs archive-lifecycle events — file packed, file
// restored, volume changed, archive opened/closed — to a pluggable
// sink, independent of the structured process logger in
// internal/middleware.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EventType identifies the kind of archive operation an event records.
type EventType string

const (
	// EventTypePack represents a file written into an archive.
	EventTypePack EventType = "pack"
	// EventTypeRestore represents a file read back out of an archive.
	EventTypeRestore EventType = "restore"
	// EventTypeVolumeChange represents a volume swap (media or staging
	// rollover) completed by the volume controller.
	EventTypeVolumeChange EventType = "volume_change"
	// EventTypeArchiveOpen represents an archive or archive part being
	// opened for reading or writing.
	EventTypeArchiveOpen EventType = "archive_open"
	// EventTypeArchiveClose represents an archive or archive part being
	// closed.
	EventTypeArchiveClose EventType = "archive_close"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp      time.Time              `json:"timestamp"`
	EventType      EventType              `json:"event_type"`
	Operation      string                 `json:"operation"`
	Stem           string                 `json:"stem,omitempty"`
	Name           string                 `json:"name,omitempty"`
	CompressAlg    string                 `json:"compress_algorithm,omitempty"`
	CryptAlg       string                 `json:"crypt_algorithm,omitempty"`
	VolumeNumber   int                    `json:"volume_number,omitempty"`
	Success        bool                   `json:"success"`
	Error          string                 `json:"error,omitempty"`
	Duration       time.Duration          `json:"duration_ms"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Logger is the interface for audit logging.
type Logger interface {
	// Log records a raw event.
	Log(event *Event) error

	// LogPack records a file packed into an archive.
	LogPack(stem, name, compressAlg, cryptAlg string, success bool, err error, duration time.Duration)

	// LogRestore records a file restored from an archive.
	LogRestore(stem, name, compressAlg, cryptAlg string, success bool, err error, duration time.Duration)

	// LogVolumeChange records a volume controller transition to Loaded.
	LogVolumeChange(stem string, volumeNumber int, success bool, err error)

	// LogArchiveEvent records an archive or part being opened or closed.
	LogArchiveEvent(eventType EventType, stem string, success bool, err error)

	// Events returns a snapshot of the events retained in memory.
	Events() []*Event

	// Close closes the logger and its underlying sink.
	Close() error
}

// auditLogger is the default Logger implementation: an in-memory ring
// buffer fronting a pluggable EventWriter.
type auditLogger struct {
	mu        sync.Mutex
	events    []*Event
	maxEvents int
	writer    EventWriter
}

// EventWriter writes one event to a durable or remote sink.
type EventWriter interface {
	WriteEvent(event *Event) error
}

// NewLogger creates a logger retaining at most maxEvents in memory and
// forwarding each event to writer. A nil writer defaults to stdout.
func NewLogger(maxEvents int, writer EventWriter) Logger {
	if writer == nil {
		writer = &StdoutSink{}
	}
	return &auditLogger{
		events:    make([]*Event, 0, maxEvents),
		maxEvents: maxEvents,
		writer:    writer,
	}
}

// Log records a raw event, forwarding it to the sink and trimming the
// in-memory buffer to maxEvents.
func (l *auditLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	writeErr := l.writer.WriteEvent(event)

	l.events = append(l.events, event)
	if l.maxEvents > 0 && len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}

	return writeErr
}

// Close closes the underlying sink, if it supports closing.
func (l *auditLogger) Close() error {
	if closer, ok := l.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// LogPack records a file packed into an archive.
func (l *auditLogger) LogPack(stem, name, compressAlg, cryptAlg string, success bool, err error, duration time.Duration) {
	_ = l.Log(&Event{
		Timestamp:   time.Now(),
		EventType:   EventTypePack,
		Operation:   "pack",
		Stem:        stem,
		Name:        name,
		CompressAlg: compressAlg,
		CryptAlg:    cryptAlg,
		Success:     success,
		Error:       errString(err),
		Duration:    duration,
	})
}

// LogRestore records a file restored from an archive.
func (l *auditLogger) LogRestore(stem, name, compressAlg, cryptAlg string, success bool, err error, duration time.Duration) {
	_ = l.Log(&Event{
		Timestamp:   time.Now(),
		EventType:   EventTypeRestore,
		Operation:   "restore",
		Stem:        stem,
		Name:        name,
		CompressAlg: compressAlg,
		CryptAlg:    cryptAlg,
		Success:     success,
		Error:       errString(err),
		Duration:    duration,
	})
}

// LogVolumeChange records a volume controller transition to Loaded.
func (l *auditLogger) LogVolumeChange(stem string, volumeNumber int, success bool, err error) {
	_ = l.Log(&Event{
		Timestamp:    time.Now(),
		EventType:    EventTypeVolumeChange,
		Operation:    "volume_change",
		Stem:         stem,
		VolumeNumber: volumeNumber,
		Success:      success,
		Error:        errString(err),
	})
}

// LogArchiveEvent records an archive or part being opened or closed.
func (l *auditLogger) LogArchiveEvent(eventType EventType, stem string, success bool, err error) {
	_ = l.Log(&Event{
		Timestamp: time.Now(),
		EventType: eventType,
		Operation: string(eventType),
		Stem:      stem,
		Success:   success,
		Error:     errString(err),
	})
}

// Events returns a copy of the events currently retained in memory.
func (l *auditLogger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)
	return events
}

var _ EventWriter = (*StdoutSink)(nil)

// StdoutSink writes each event as one line of JSON to stdout.
type StdoutSink struct{}

// WriteEvent implements EventWriter.
func (s *StdoutSink) WriteEvent(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

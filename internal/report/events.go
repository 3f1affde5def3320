package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventSyncLocal      EventType = "sync_local"
	EventSyncRegistered EventType = "sync_registered"
	EventRequest        EventType = "request"
	EventDryRun         EventType = "dry_run"
	EventApply          EventType = "apply"
	EventRegister       EventType = "register"
	EventSkip           EventType = "skip"
	EventError          EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to LevelInfo
func ParseLevel(s string) EventLevel {
	level := EventLevel(s)
	if _, ok := levelPriority[level]; ok {
		return level
	}
	return LevelInfo
}

// Event represents a single event in a migration run
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	Filename  string            `json:"filename,omitempty"`
	Path      string            `json:"path,omitempty"`
	Checksum  string            `json:"checksum,omitempty"`
	Count     int               `json:"count,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append so two runs in the same second share a file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSyncLocal logs a read of the local migrations directory
func (l *EventLogger) LogSyncLocal(dir string, count int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventSyncLocal,
		Path:  dir,
		Count: count,
	})
}

// LogSyncRegistered logs a fetch of registered migrations
func (l *EventLogger) LogSyncRegistered(ledger string, count int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventSyncRegistered,
		Count: count,
		Extra: map[string]string{
			"ledger": ledger,
		},
	})
}

// LogRequest logs a requested token and what it resolved to. An empty
// filename means it matched no local migration.
func (l *EventLogger) LogRequest(token, filename string) error {
	if filename == "" {
		return l.Log(&Event{
			Level:  LevelWarning,
			Event:  EventRequest,
			Reason: "unresolved",
			Extra: map[string]string{
				"token": token,
			},
		})
	}

	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventRequest,
		Filename: filename,
		Extra: map[string]string{
			"token": token,
		},
	})
}

// LogDryRun logs a dry run of one migration
func (l *EventLogger) LogDryRun(filename, path string, duration time.Duration, err error) error {
	return l.logStep(EventDryRun, filename, path, "", duration, err)
}

// LogApply logs applying one migration
func (l *EventLogger) LogApply(filename, path, checksum string, duration time.Duration, err error) error {
	return l.logStep(EventApply, filename, path, checksum, duration, err)
}

// LogRegister logs recording an applied migration in the ledger
func (l *EventLogger) LogRegister(filename string, err error) error {
	return l.logStep(EventRegister, filename, "", "", 0, err)
}

func (l *EventLogger) logStep(event EventType, filename, path, checksum string, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    event,
		Filename: filename,
		Path:     path,
		Checksum: checksum,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogSkip logs a migration that was not run
func (l *EventLogger) LogSkip(filename, reason string) error {
	return l.Log(&Event{
		Level:    LevelWarning,
		Event:    EventSkip,
		Filename: filename,
		Reason:   reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, filename string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    event,
		Filename: filename,
		Error:    err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

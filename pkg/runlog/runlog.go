// Package runlog keeps the log of one goal run. Every component of a run logs
// through a Logger obtained from Log.Logger; each line is kept as an Entry so
// the evaluator can read the full history of the run. Recording ignores the
// process log level, only the tee honours it.
package runlog

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-codeagent/pkg/logger"
)

type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Kind    string    `json:"kind,omitempty"`
}

func (e Entry) String() string {
	line := fmt.Sprintf("%s [%s] %s: %s", e.Time.Format(time.RFC3339), e.Level, e.Source, e.Message)
	if e.Kind != "" {
		line += " (" + e.Kind + ")"
	}
	return line
}

// Log is append-only. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	tee     io.Writer
	fields  map[string]interface{}
}

// New creates an empty log. Lines are also written to tee when it is not nil,
// decorated with fields.
func New(tee io.Writer, fields map[string]interface{}) *Log {
	return &Log{
		entries: make([]Entry, 0),
		tee:     tee,
		fields:  fields,
	}
}

// Logger writes events into a Log. Events are built on zerolog but are never
// dropped by zerolog.SetGlobalLevel.
type Logger struct {
	zl zerolog.Logger
}

func (l *Logger) Debug() *zerolog.Event { return l.WithLevel(zerolog.DebugLevel) }
func (l *Logger) Info() *zerolog.Event  { return l.WithLevel(zerolog.InfoLevel) }
func (l *Logger) Warn() *zerolog.Event  { return l.WithLevel(zerolog.WarnLevel) }
func (l *Logger) Error() *zerolog.Event { return l.WithLevel(zerolog.ErrorLevel) }

// WithLevel starts an event at level. The event is emitted without a zerolog
// level so the global filter does not apply; the level is written as a field.
func (l *Logger) WithLevel(level zerolog.Level) *zerolog.Event {
	return l.zl.Log().Str(zerolog.LevelFieldName, zerolog.LevelFieldMarshalFunc(level))
}

// Logger returns a logger whose lines are recorded with the given source.
func (l *Log) Logger(source string) *Logger {
	ctx := zerolog.New(l).With().Timestamp().Str(logger.SourceField, source)
	if len(l.fields) > 0 {
		ctx = ctx.Fields(l.fields)
	}
	return &Logger{zl: ctx.Logger()}
}

// Write records one JSON encoded zerolog event.
func (l *Log) Write(p []byte) (int, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(p, &raw); err != nil {
		return 0, fmt.Errorf("unmarshal: %w", err)
	}

	e := Entry{Time: time.Now()}
	if s, ok := raw[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(zerolog.TimeFieldFormat, s); err == nil {
			e.Time = t
		}
	}
	e.Level, _ = raw[zerolog.LevelFieldName].(string)
	e.Message, _ = raw[zerolog.MessageFieldName].(string)
	e.Source, _ = raw[logger.SourceField].(string)
	e.Kind, _ = raw[logger.KindField].(string)
	if errMsg, ok := raw[zerolog.ErrorFieldName].(string); ok && errMsg != "" {
		e.Message += ": " + errMsg
	}

	l.Append(e)

	if l.tee != nil {
		if lvl, err := zerolog.ParseLevel(e.Level); err == nil && lvl >= zerolog.GlobalLevel() {
			if _, err := l.tee.Write(p); err != nil {
				return 0, fmt.Errorf("tee: %w", err)
			}
		}
	}
	return len(p), nil
}

func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Lines() []string {
	entries := l.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	return lines
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

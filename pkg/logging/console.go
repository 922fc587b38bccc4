package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
)

var levelColors = map[Level]*color.Color{
	DebugLevel: color.New(color.FgHiBlack),
	InfoLevel:  color.New(color.FgGreen),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed),
}

// consoleSink serializes writes from every derived ConsoleLogger
type consoleSink struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// ConsoleLogger implements Logger with colored output on standard error,
// meant for interactive use
type ConsoleLogger struct {
	sink   *consoleSink
	fields Fields
}

// NewConsoleLogger creates a console logger writing to stderr
func NewConsoleLogger(level Level) *ConsoleLogger {
	return &ConsoleLogger{sink: &consoleSink{out: os.Stderr, level: level}}
}

// Debug logs a debug message
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(DebugLevel, msg, nil, fields)
}

// Info logs an info message
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(InfoLevel, msg, nil, fields)
}

// Warn logs a warning message
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(WarnLevel, msg, nil, fields)
}

// Error logs an error message
func (l *ConsoleLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger with additional fields writing to the same stream
func (l *ConsoleLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ConsoleLogger{sink: l.sink, fields: merged}
}

// Close does nothing; stderr stays open
func (l *ConsoleLogger) Close() error {
	return nil
}

func (l *ConsoleLogger) log(level Level, msg string, err error, fields Fields) {
	s := l.sink
	if level < s.level {
		return
	}

	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	merged = redactFields(merged)

	tag := levelString(level)
	if c, ok := levelColors[level]; ok {
		tag = c.Sprint(tag)
	}

	line := fmt.Sprintf("%s %-5s %s", time.Now().Format("15:04:05"), tag, redactMessage(msg))
	if err != nil {
		line += fmt.Sprintf(" error=%q", err.Error())
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, merged[k])
	}

	s.mu.Lock()
	fmt.Fprintln(s.out, line)
	s.mu.Unlock()
}

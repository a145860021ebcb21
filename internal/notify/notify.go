// Package notify keeps the bounded, newest-first log of user-facing notices.
package notify

import (
	"fmt"
	"time"

	"github.com/BioHazard786/huddle/internal/utils"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of notifications retained.
const DefaultCapacity = 50

// Severity classifies a notification.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// ParseSeverity maps a server-supplied notification type onto a severity,
// defaulting to Info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case Success, Warning, Error:
		return Severity(s)
	case "warn":
		return Warning
	}
	return Info
}

// Notification is one entry of the log.
type Notification struct {
	ID       string
	Message  string
	Severity Severity
	Time     time.Time
}

// Log is not safe for concurrent use. It is owned by the event loop.
type Log struct {
	entries  *utils.RingBuffer[Notification]
	now      func() time.Time
	onAppend func(Notification)
}

// New creates a log keeping at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries: utils.NewRingBuffer[Notification](capacity),
		now:     time.Now,
	}
}

// OnAppend registers fn to be called with each new notification.
func (l *Log) OnAppend(fn func(Notification)) {
	l.onAppend = fn
}

// Add appends a notification, dropping the oldest when full.
func (l *Log) Add(sev Severity, message string) Notification {
	n := Notification{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: sev,
		Time:     l.now(),
	}
	l.entries.Push(n)
	if l.onAppend != nil {
		l.onAppend(n)
	}
	return n
}

func (l *Log) Infof(format string, args ...any) Notification {
	return l.Add(Info, fmt.Sprintf(format, args...))
}

func (l *Log) Successf(format string, args ...any) Notification {
	return l.Add(Success, fmt.Sprintf(format, args...))
}

func (l *Log) Warnf(format string, args ...any) Notification {
	return l.Add(Warning, fmt.Sprintf(format, args...))
}

func (l *Log) Errorf(format string, args ...any) Notification {
	return l.Add(Error, fmt.Sprintf(format, args...))
}

// List returns the notifications, newest first.
func (l *Log) List() []Notification {
	return l.entries.Newest()
}

// Len returns the number of retained notifications.
func (l *Log) Len() int {
	return l.entries.Len()
}

// Clear drops every notification.
func (l *Log) Clear() {
	l.entries.Reset()
}

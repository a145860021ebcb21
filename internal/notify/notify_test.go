package notify

import (
	"fmt"
	"testing"
)

func TestLogKeepsNewestFirstWithinCapacity(t *testing.T) {
	l := New(DefaultCapacity)
	for i := 0; i < 60; i++ {
		l.Infof("n%d", i)
	}

	if l.Len() != 50 {
		t.Fatalf("len = %d, want 50", l.Len())
	}

	list := l.List()
	if list[0].Message != "n59" {
		t.Fatalf("newest = %q, want n59", list[0].Message)
	}
	if list[49].Message != "n10" {
		t.Fatalf("oldest = %q, want n10", list[49].Message)
	}
}

func TestLogAssignsUniqueIDs(t *testing.T) {
	l := New(10)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		n := l.Warnf("warn %d", i)
		if n.ID == "" || seen[n.ID] {
			t.Fatalf("duplicate or empty id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Severity != Warning {
			t.Fatalf("severity = %q", n.Severity)
		}
	}
}

func TestOnAppend(t *testing.T) {
	l := New(5)
	var got []string
	l.OnAppend(func(n Notification) { got = append(got, fmt.Sprintf("%s:%s", n.Severity, n.Message)) })

	l.Successf("joined %s", "tech")
	l.Errorf("failed")

	if len(got) != 2 || got[0] != "success:joined tech" || got[1] != "error:failed" {
		t.Fatalf("got %v", got)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"":        Info,
		"info":    Info,
		"success": Success,
		"warning": Warning,
		"warn":    Warning,
		"error":   Error,
		"bogus":   Info,
	}
	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

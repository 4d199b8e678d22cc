package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestDebugfRespectsLevel(t *testing.T) {
	original := Logf
	defer func() { Logf = original; SetDebugLevel(0) }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	SetDebugLevel(0)
	Debugf(1, "hidden")
	if len(lines) != 0 {
		t.Fatalf("expected no output at level 0, got %v", lines)
	}

	SetDebugLevel(2)
	Debugf(1, "shown %d", 1)
	Debugf(3, "hidden")
	if len(lines) != 1 || lines[0] != "shown 1" {
		t.Errorf("unexpected debug output %v", lines)
	}
}

func TestWarnOnce(t *testing.T) {
	original := Logf
	defer func() { Logf = original; ResetWarnings() }()
	ResetWarnings()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	if !WarnOnce("curve:7", "missing curve on anim %d", 7) {
		t.Error("first WarnOnce should emit")
	}
	if WarnOnce("curve:7", "missing curve on anim %d", 7) {
		t.Error("second WarnOnce should be silent")
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "WARN: ") {
		t.Errorf("unexpected warnings %v", lines)
	}

	ResetWarnings()
	if !WarnOnce("curve:7", "again") {
		t.Error("WarnOnce should emit after ResetWarnings")
	}
}

package monitoring

import (
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("ingesting transmitter %d", 3)
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("muted")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestDebugfRespectsVerbose(t *testing.T) {
	original, origVerbose := Logf, Verbose
	defer func() { Logf, Verbose = original, origVerbose }()

	var lines int
	SetLogger(func(string, ...interface{}) { lines++ })

	Verbose = false
	Debugf("hidden")
	if lines != 0 {
		t.Fatalf("Debugf logged %d lines with Verbose off", lines)
	}

	Verbose = true
	Debugf("shown")
	if lines != 1 {
		t.Fatalf("Debugf logged %d lines with Verbose on, want 1", lines)
	}
}

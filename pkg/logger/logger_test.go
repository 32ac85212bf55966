package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetNoColor(false)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: WarnLevel, Writer: &buf, NoColor: true})

	l.Info("hidden")
	l.Warnf("shown %d", 1)
	l.Error("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info message leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "WARN  shown 1") {
		t.Errorf("Expected warn line, got %q", out)
	}
	if !strings.Contains(out, "ERROR also shown") {
		t.Errorf("Expected error line, got %q", out)
	}
}

func TestDerivedLoggersShareLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithConfig(Config{Level: InfoLevel, Writer: &buf, NoColor: true})
	child := root.WithPrefix("c2/bn").WithFields(map[string]interface{}{"z": 2, "a": 1})

	child.Debug("before")
	root.(*logger).settings.level = DebugLevel
	child.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("Debug message written at info level")
	}
	if !strings.Contains(out, "DEBUG [c2/bn] a=1 z=2 after") {
		t.Errorf("Expected prefixed, sorted fields, got %q", out)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithConfig(Config{Writer: &buf, NoColor: true})
	_ = root.WithField("unit", "fu1")
	root.Info("plain")

	if strings.Contains(buf.String(), "unit=") {
		t.Errorf("Parent logger picked up child field: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"chatty":  InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable("Unit", "Rounds")
	table.AddRow("fu-w1", "4")
	table.AddRow("fu-e10", "12", "ignored")
	table.Render(&buf)

	want := "Unit    Rounds\n" +
		"------  ------\n" +
		"fu-w1   4\n" +
		"fu-e10  12\n"
	if buf.String() != want {
		t.Errorf("Unexpected table:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestKeyValuesSorted(t *testing.T) {
	buf := captureConsole(t)
	LogKeyValues(map[string]interface{}{"Seed": 1, "Duration": "20m"})

	if buf.String() != "Duration: 20m\nSeed: 1\n" {
		t.Errorf("Unexpected key values: %q", buf.String())
	}
}

func TestProgressBar(t *testing.T) {
	buf := captureConsole(t)
	bar := NewProgressBar(4, "Simulating")

	bar.Update(2)
	bar.Update(2) // unchanged, not redrawn
	if n := strings.Count(buf.String(), "\r"); n != 1 {
		t.Errorf("Expected one draw, got %d", n)
	}
	if bar.Percent() != 0.5 {
		t.Errorf("Expected 0.5, got %f", bar.Percent())
	}

	bar.Update(10)
	if bar.Percent() != 1 {
		t.Errorf("Expected clamp to 1, got %f", bar.Percent())
	}
	bar.Finish()
	if !strings.HasSuffix(buf.String(), "100%\n") {
		t.Errorf("Expected finished bar, got %q", buf.String())
	}
}

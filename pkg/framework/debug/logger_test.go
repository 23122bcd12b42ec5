package debug

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the async drain goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestLogger(t *testing.T) {
	t.Run("BasicLogging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "TEST", FlagLevel|FlagPrefix)

		logger.Info("Hello %s", "World")

		output := buf.String()
		if !strings.Contains(output, "[INFO]") {
			t.Error("Missing log level")
		}
		if !strings.Contains(output, "[TEST]") {
			t.Error("Missing prefix")
		}
		if !strings.Contains(output, "Hello World") {
			t.Error("Missing message")
		}
	})

	t.Run("LogLevels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "", FlagLevel)
		logger.SetLevel(LogLevelWarn)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")

		output := buf.String()
		if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
			t.Error("Messages below the level should not be logged")
		}
		if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
			t.Error("Messages at or above the level should be logged")
		}
	})

	t.Run("Off", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "", DefaultFlags)
		logger.SetLevel(LogLevelOff)
		logger.Error("should not appear")
		if buf.Len() > 0 {
			t.Error("Logger at LogLevelOff should not write")
		}
		if Discard().Enabled(LogLevelError) {
			t.Error("Discard logger should be disabled")
		}
	})

	t.Run("FileInfo", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "", FlagShortFile|FlagLevel)

		logger.Info("test")

		if !strings.Contains(buf.String(), "logger_test.go:") {
			t.Errorf("Missing caller file in output: %s", buf.String())
		}
	})

	t.Run("ExplicitLocation", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "", FlagShortFile|FlagFunction)

		logger.Log(LogLevelWarn, "/src/echo/echo.go", 42, "echo.process", "tail %d", 7)

		want := "echo.go:42: echo.process: tail 7\n"
		if buf.String() != want {
			t.Errorf("got %q, want %q", buf.String(), want)
		}
	})

	t.Run("With", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "host", FlagPrefix).With("gain")
		logger.Info("ready")
		if buf.String() != "[gain] ready\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
		}
		if tt.expected == "UNKNOWN" {
			continue
		}
		parsed, err := ParseLevel(strings.ToLower(tt.expected))
		if err != nil || parsed != tt.level {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.expected, parsed, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestAsync(t *testing.T) {
	t.Run("Delivers", func(t *testing.T) {
		var buf syncBuffer
		a := NewAsync(New(&buf, "", 0), 16)
		a.Log(LogLevelInfo, "", 0, "", "block %d", 1)
		a.Log(LogLevelInfo, "", 0, "", "block %d", 2)
		a.Close()

		if buf.String() != "block 1\nblock 2\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
		if a.Dropped() != 0 {
			t.Errorf("expected no drops, got %d", a.Dropped())
		}
	})

	t.Run("FormatsAtCall", func(t *testing.T) {
		var buf syncBuffer
		gate := make(chan struct{})
		a := NewAsync(New(io.MultiWriter(blockingWriter(gate), &buf), "", 0), 4)
		// the writer is stuck on the first message while the slice changes
		a.Log(LogLevelInfo, "", 0, "", "hold")
		levels := []float32{0.5, 0.25}
		a.Log(LogLevelInfo, "", 0, "", "levels %v", levels)
		levels[0] = 9
		close(gate)
		a.Close()

		if buf.String() != "hold\nlevels [0.5 0.25]\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("DropsWhenFull", func(t *testing.T) {
		gate := make(chan struct{})
		a := NewAsync(New(blockingWriter(gate), "", 0), 1)

		start := time.Now()
		for i := 0; i < 100; i++ {
			a.Log(LogLevelInfo, "", 0, "", "m")
		}
		if time.Since(start) > time.Second {
			t.Error("Log blocked on a full queue")
		}
		if a.Dropped() == 0 {
			t.Error("expected drops with a stalled writer")
		}
		close(gate)
		a.Close()
	})

	t.Run("AfterClose", func(t *testing.T) {
		a := NewAsync(Discard(), 4)
		a.Close()
		a.Log(LogLevelError, "", 0, "", "late")
		if a.Dropped() != 1 {
			t.Errorf("expected late message dropped, got %d", a.Dropped())
		}
		a.Close()
	})
}

type blockingWriter chan struct{}

func (b blockingWriter) Write(p []byte) (int, error) {
	<-b
	return len(p), nil
}

func BenchmarkAsync(b *testing.B) {
	a := NewAsync(Discard(), 1024)
	defer a.Close()
	for i := 0; i < b.N; i++ {
		a.Log(LogLevelInfo, "bench.go", 1, "bench", "message %d", i)
	}
}

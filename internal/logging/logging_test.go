package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func capture(t *testing.T, level slog.Level, format Format) *bytes.Buffer {
	t.Helper()
	prev := current.Load()
	t.Cleanup(func() {
		if prev != nil {
			current.Store(prev)
			slog.SetDefault(prev)
		}
	})

	var buf bytes.Buffer
	InitWithHandler(NewHandler(&buf, level, format))
	return &buf
}

func TestComponent_LateInit(t *testing.T) {
	// Created before the handler it writes through.
	log := Component("server")

	buf := capture(t, slog.LevelInfo, FormatJSON)
	log.Info("listening", "address", "127.0.0.1:8080")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry["component"] != "server" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["address"] != "127.0.0.1:8080" {
		t.Errorf("address = %v", entry["address"])
	}
}

func TestComponent_With(t *testing.T) {
	buf := capture(t, slog.LevelInfo, FormatText)
	Component("session").With("records", 3).Info("closed")

	out := buf.String()
	for _, want := range []string{"component=session", "records=3", "msg=closed"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestLevelFilter(t *testing.T) {
	buf := capture(t, slog.LevelWarn, FormatText)
	Component("x").Info("hidden")
	Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info logged at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn not logged")
	}
}

func TestWithContext(t *testing.T) {
	buf := capture(t, slog.LevelInfo, FormatText)

	ctx := ContextWithRemote(ContextWithSessionID(context.Background(), "abc"), "10.0.0.2:5000")
	WithContext(ctx).Info("connected")

	out := buf.String()
	if !strings.Contains(out, "session_id=abc") || !strings.Contains(out, "remote=10.0.0.2:5000") {
		t.Errorf("context attributes missing: %q", out)
	}
}

func TestPretty_NoColorOffTerminal(t *testing.T) {
	buf := capture(t, slog.LevelInfo, FormatPretty)
	Info("hello", "n", 1)

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("colour codes written to a buffer: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("message missing: %q", buf.String())
	}
}

func TestParse(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
	if l, err := ParseLevel("debug"); err != nil || l != slog.LevelDebug {
		t.Errorf("ParseLevel(debug) = %v, %v", l, err)
	}
	if l, err := ParseLevel(""); err != nil || l != slog.LevelInfo {
		t.Errorf("ParseLevel(\"\") = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for loud")
	}
}

func TestComponent_FollowsReinit(t *testing.T) {
	log := Component("window")

	first := capture(t, slog.LevelInfo, FormatText)
	log.Info("one")

	second := capture(t, slog.LevelInfo, FormatText)
	log.Info("two")

	if !strings.Contains(first.String(), "msg=one") || strings.Contains(first.String(), "two") {
		t.Errorf("first handler got %q", first.String())
	}
	if !strings.Contains(second.String(), "msg=two") || !strings.Contains(second.String(), "component=window") {
		t.Errorf("second handler got %q", second.String())
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestComponent_ConcurrentInit(t *testing.T) {
	capture(t, slog.LevelInfo, FormatText)
	log := Component("session")

	var out lockedBuffer
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				log.Info("record", "n", j)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		InitWithHandler(NewHandler(&out, slog.LevelInfo, FormatText))
	}
	wg.Wait()

	if Default() == nil {
		t.Fatal("no global logger")
	}
}

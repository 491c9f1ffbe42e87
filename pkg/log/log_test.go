package log

import (
	"bytes"
	"strings"
	"testing"
)

func captureLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestPrefixAndLevel(t *testing.T) {
	SetGlobalDebug(false)

	l, buf := captureLogger(t, "resolver_prefix_test")
	l.Infof("resolved %d", 101)

	out := buf.String()
	if !strings.Contains(out, "INFO [resolver_prefix_test>] resolved 101") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestForServiceMemoizes(t *testing.T) {
	if ForService("memo_test") != ForService("memo_test") {
		t.Fatal("expected the same logger instance for the same name")
	}
	if ForService("").Name() != "unknown" {
		t.Fatal("expected empty name to map to unknown")
	}
}

func TestWithRequestTagsLines(t *testing.T) {
	SetGlobalDebug(false)

	l, buf := captureLogger(t, "search_request_test")
	rl := l.WithRequest("req-42")
	rl.Warnf("source %s failed", "social")

	out := buf.String()
	if !strings.Contains(out, "WARN [search_request_test>] [req-42] source social failed") {
		t.Fatalf("expected request id in output, got: %q", out)
	}

	buf.Reset()
	l.Errorf("plain")
	if strings.Contains(buf.String(), "req-42") {
		t.Fatalf("parent logger must not carry request id: %q", buf.String())
	}
}

func TestDebugToggles(t *testing.T) {
	tests := []struct {
		name       string
		global     bool
		perService bool
		visible    bool
	}{
		{"off", false, false, false},
		{"per service", false, true, true},
		{"global", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := "debug_toggle_" + strings.ReplaceAll(tt.name, " ", "_")
			SetGlobalDebug(tt.global)
			defer SetGlobalDebug(false)
			DisableDebugFor(svc)
			if tt.perService {
				EnableDebugFor(svc)
			}

			l, buf := captureLogger(t, svc)
			l.Debugf("details")

			if got := strings.Contains(buf.String(), "details"); got != tt.visible {
				t.Fatalf("visible = %v, want %v (output %q)", got, tt.visible, buf.String())
			}
		})
	}
}

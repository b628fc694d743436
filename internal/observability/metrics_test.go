package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(bytesTotal.WithLabelValues(DirectionDropped))
	RecordBytes(DirectionDropped, 3)
	if got := testutil.ToFloat64(bytesTotal.WithLabelValues(DirectionDropped)); got != before+3 {
		t.Errorf("dropped bytes = %v, want %v", got, before+3)
	}

	RecordSessionOpened()
	if got := testutil.ToFloat64(sessionActive); got != 1 {
		t.Errorf("session_active = %v, want 1", got)
	}
	RecordSessionClosed("peer_closed")
	if got := testutil.ToFloat64(sessionActive); got != 0 {
		t.Errorf("session_active = %v, want 0", got)
	}
}

func TestRecordLinkStateIsExclusive(t *testing.T) {
	RecordLinkState("connecting")
	RecordLinkState("connected")
	for _, s := range LinkStates {
		want := 0.0
		if s == "connected" {
			want = 1
		}
		if got := testutil.ToFloat64(linkState.WithLabelValues(s)); got != want {
			t.Errorf("link_state{state=%q} = %v, want %v", s, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warning ", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseLevel(tt.raw); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(&buf, "kbdbridge", LogConfig{Level: "info", JSON: true})
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, `"app":"kbdbridge"`) || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestLinkCounters(t *testing.T) {
	retries := testutil.ToFloat64(linkRetries)
	failures := testutil.ToFloat64(linkFailures)
	RecordLinkRetry()
	RecordLinkRetry()
	RecordLinkFailure()
	if got := testutil.ToFloat64(linkRetries); got != retries+2 {
		t.Errorf("retries_total = %v, want %v", got, retries+2)
	}
	if got := testutil.ToFloat64(linkFailures); got != failures+1 {
		t.Errorf("failures_total = %v, want %v", got, failures+1)
	}
}

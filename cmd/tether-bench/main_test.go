package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1},
		{0.5, 5},
		{0.95, 10},
		{0.99, 10},
		{1, 10},
	}
	for _, tt := range tests {
		if got := percentile(samples, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestMakeToken(t *testing.T) {
	seen := make(map[string]bool)
	for client := 0; client < 3; client++ {
		for seq := uint64(1); seq <= 50; seq++ {
			tok := makeToken(client, seq, 12)
			if len(tok) != 12 {
				t.Fatalf("len(makeToken) = %d, want 12", len(tok))
			}
			if tok[0] != 't' {
				t.Fatalf("makeToken = %q, want leading t", tok)
			}
			if seen[tok] {
				t.Fatalf("duplicate token %q", tok)
			}
			seen[tok] = true
		}
	}
	if got := makeToken(1, 1, 0); got != "" {
		t.Errorf("makeToken(payload=0) = %q, want empty", got)
	}
}

func TestEventTimeout(t *testing.T) {
	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{0, 0},
		{10, 2 * time.Second},
		{1, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := eventTimeout(tt.rps); got != tt.want {
			t.Errorf("eventTimeout(%v) = %v, want %v", tt.rps, got, tt.want)
		}
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-profile", "fast", "-clients", "3", "-rps", "4"})
	if err != nil {
		t.Fatalf("parseConfig() error: %v", err)
	}
	if cfg.Profile != "fast" || cfg.Clients != 3 || cfg.RPS != 4 {
		t.Errorf("parseConfig() = %+v", cfg)
	}
	if cfg.Duration != profiles["fast"].Duration {
		t.Errorf("Duration = %v, want %v", cfg.Duration, profiles["fast"].Duration)
	}
	if cfg.EventTimeout != 2*time.Second {
		t.Errorf("EventTimeout = %v, want 2s", cfg.EventTimeout)
	}

	for _, args := range [][]string{
		{"-profile", "huge"},
		{"-clients", "0"},
		{"-rps", "0"},
		{"-interval", "-1s"},
	} {
		if _, err := parseConfig(args); err == nil {
			t.Errorf("parseConfig(%v) should fail", args)
		}
	}
}

func TestFNV1a32(t *testing.T) {
	if got := fnv1a32(""); got != 2166136261 {
		t.Errorf("fnv1a32(\"\") = %d, want 2166136261", got)
	}
	if got := fnv1a32("a"); got != 0xe40c292c {
		t.Errorf("fnv1a32(\"a\") = %#x, want 0xe40c292c", got)
	}
}

func TestRunBench(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load run in short mode")
	}
	cfg := benchConfig{
		Profile:      "test",
		Clients:      2,
		Duration:     time.Second,
		RPS:          20,
		ListSize:     10,
		PayloadBytes: 16,
		Interval:     10 * time.Millisecond,
		EventTimeout: 2 * time.Second,
	}

	report, err := runBench(cfg)
	if err != nil {
		t.Fatalf("runBench() error: %v", err)
	}
	if report.Errors.TotalErrors != 0 {
		t.Errorf("TotalErrors = %d, want 0 (%+v)", report.Errors.TotalErrors, report.Errors)
	}
	if report.Throughput.EventsTotal < 1 {
		t.Errorf("EventsTotal = %d, want >= 1", report.Throughput.EventsTotal)
	}
	if report.Protocol.Acks < 1 {
		t.Errorf("Acks = %d, want >= 1", report.Protocol.Acks)
	}
	if report.Sessions.Created != 2 {
		t.Errorf("Sessions.Created = %d, want 2", report.Sessions.Created)
	}
	if report.Protocol.Messages["ReplaceWindow"] != 2 {
		t.Errorf("ReplaceWindow messages = %d, want 2", report.Protocol.Messages["ReplaceWindow"])
	}

	var buf bytes.Buffer
	writeSummary(&buf, report)
	if !strings.Contains(buf.String(), "Clients: 2") {
		t.Errorf("summary missing client count:\n%s", buf.String())
	}
	if _, err := json.Marshal(report); err != nil {
		t.Errorf("json.Marshal(report) error: %v", err)
	}
}

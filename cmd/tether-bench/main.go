package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/tether/pkg/protocol"
	"github.com/vango-dev/tether/pkg/server"
	"github.com/vango-dev/tether/pkg/vdom"
)

type profile struct {
	Name     string
	Clients  int
	Duration time.Duration
	RPS      float64
	ListSize int
}

var profiles = map[string]profile{
	"fast": {
		Name:     "fast",
		Clients:  50,
		Duration: 10 * time.Second,
		RPS:      2,
		ListSize: 20,
	},
	"standard": {
		Name:     "standard",
		Clients:  200,
		Duration: 30 * time.Second,
		RPS:      5,
		ListSize: 50,
	},
	"stress": {
		Name:     "stress",
		Clients:  500,
		Duration: 60 * time.Second,
		RPS:      10,
		ListSize: 100,
	},
}

type benchConfig struct {
	Profile      string
	Clients      int
	Duration     time.Duration
	RPS          float64
	ListSize     int
	PayloadBytes int
	Interval     time.Duration
	JSONOutput   string
	EventTimeout time.Duration
}

type benchCounters struct {
	eventsSent     atomic.Uint64
	eventsComplete atomic.Uint64
	eventBytes     atomic.Uint64
	updateBytes    atomic.Uint64
	acks           atomic.Uint64
	messages       [4]atomic.Uint64
}

func (c *benchCounters) addMessage(k protocol.MessageKind) {
	if i := int(k - protocol.KindReplaceWindow); i >= 0 && i < len(c.messages) {
		c.messages[i].Add(1)
	}
}

func (c *benchCounters) messageSnapshot() map[string]uint64 {
	out := make(map[string]uint64)
	for i := range c.messages {
		if n := c.messages[i].Load(); n > 0 {
			out[(protocol.KindReplaceWindow + protocol.MessageKind(i)).String()] = n
		}
	}
	return out
}

type benchErrors struct {
	handshakeFailures  atomic.Uint64
	eventWriteFailures atomic.Uint64
	decodeFailures     atomic.Uint64
	tokenMissing       atomic.Uint64
	totalErrors        atomic.Uint64
}

func main() {
	log.SetFlags(0)

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	report, err := runBench(cfg)
	if err != nil {
		log.Fatal(err)
	}

	writeSummary(os.Stderr, report)
	if err := writeJSON(cfg.JSONOutput, report); err != nil {
		log.Fatalf("write json: %v", err)
	}
}

func parseConfig(args []string) (benchConfig, error) {
	fs := flag.NewFlagSet("tether-bench", flag.ContinueOnError)
	profileFlag := fs.String("profile", "standard", "profile: fast|standard|stress")
	clientsFlag := fs.Int("clients", -1, "number of concurrent websocket clients")
	durationFlag := fs.Duration("duration", 0, "benchmark duration, e.g. 30s")
	rpsFlag := fs.Float64("rps", -1, "target events/sec per client")
	listFlag := fs.Int("list", -1, "list size rendered per session")
	payloadFlag := fs.Int("payload-bytes", 24, "bytes of token payload per event")
	intervalFlag := fs.Duration("interval", 20*time.Millisecond, "session tick interval")
	jsonFlag := fs.String("json", "-", "JSON output path ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return benchConfig{}, err
	}

	name := strings.ToLower(strings.TrimSpace(*profileFlag))
	if name == "" {
		name = "standard"
	}
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:      base.Name,
		Clients:      base.Clients,
		Duration:     base.Duration,
		RPS:          base.RPS,
		ListSize:     base.ListSize,
		PayloadBytes: *payloadFlag,
		Interval:     *intervalFlag,
		JSONOutput:   strings.TrimSpace(*jsonFlag),
	}
	if *clientsFlag != -1 {
		cfg.Clients = *clientsFlag
	}
	if *durationFlag != 0 {
		cfg.Duration = *durationFlag
	}
	if *rpsFlag != -1 {
		cfg.RPS = *rpsFlag
	}
	if *listFlag != -1 {
		cfg.ListSize = *listFlag
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	switch {
	case cfg.Clients <= 0:
		return benchConfig{}, errors.New("-clients must be > 0")
	case cfg.Duration <= 0:
		return benchConfig{}, errors.New("-duration must be > 0")
	case cfg.RPS <= 0:
		return benchConfig{}, errors.New("-rps must be > 0")
	case cfg.ListSize < 0:
		return benchConfig{}, errors.New("-list must be >= 0")
	case cfg.PayloadBytes <= 0:
		return benchConfig{}, errors.New("-payload-bytes must be > 0")
	case cfg.Interval <= 0:
		return benchConfig{}, errors.New("-interval must be > 0")
	}

	cfg.EventTimeout = eventTimeout(cfg.RPS)
	return cfg, nil
}

func eventTimeout(rps float64) time.Duration {
	if rps <= 0 {
		return 0
	}
	period := time.Duration(float64(time.Second) / rps)
	timeout := period * 10
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return timeout
}

// runBench serves a load tree on a loopback listener and drives it with
// cfg.Clients websocket clients until cfg.Duration elapses.
func runBench(cfg benchConfig) (benchReport, error) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	sessCfg := server.DefaultSessionConfig()
	sessCfg.UpdateInterval = cfg.Interval
	srv := server.New(
		server.DefaultServerConfig().WithSessionConfig(sessCfg),
		newLoadApp(cfg.ListSize),
	)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return benchReport{}, fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{Handler: srv}
	go func() {
		_ = httpServer.Serve(ln)
	}()
	defer func() {
		_ = srv.Shutdown(context.Background())
		_ = httpServer.Shutdown(context.Background())
	}()

	wsURL := "ws://" + ln.Addr().String() + "/"

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, sampleBuffer(cfg.Clients))
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samples = append(samples, rtt)
		}
	}()

	var counters benchCounters
	var errCounts benchErrors

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		clientID := i
		go func() {
			defer wg.Done()
			if err := runClient(ctx, wsURL, clientID, cfg, &counters, &errCounts, samplesCh); err != nil {
				errCounts.totalErrors.Add(1)
			}
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	stats := srv.Sessions().Stats()
	return buildReport(cfg, elapsed, samples, &counters, &errCounts, before, after, stats), nil
}

func sampleBuffer(clients int) int {
	return max(clients*4, 1024)
}

var inputID = regexp.MustCompile(`<input id="(\d+)"`)

func runClient(
	ctx context.Context,
	wsURL string,
	clientID int,
	cfg benchConfig,
	counters *benchCounters,
	errCounts *benchErrors,
	samples chan<- time.Duration,
) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// The first message is the full window; find the input node in it.
	_, first, err := conn.ReadMessage()
	if err != nil {
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("first read: %w", err)
	}
	msg, err := protocol.ParseMessage(string(first))
	if err != nil || msg.Kind != protocol.KindReplaceWindow {
		errCounts.decodeFailures.Add(1)
		return fmt.Errorf("first message: %q", first)
	}
	counters.addMessage(msg.Kind)
	m := inputID.FindStringSubmatch(msg.Markup)
	if m == nil {
		errCounts.decodeFailures.Add(1)
		return errors.New("no input node in window")
	}
	input := m[1]

	period := time.Duration(float64(time.Second) / cfg.RPS)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		token := makeToken(clientID, seq, cfg.PayloadBytes)
		start := time.Now()

		call := protocol.EncodeCall(input, "input", map[string]any{"value": token})
		if err := conn.WriteMessage(websocket.TextMessage, []byte(call)); err != nil {
			errCounts.eventWriteFailures.Add(1)
			return fmt.Errorf("event write: %w", err)
		}
		counters.eventsSent.Add(1)
		counters.eventBytes.Add(uint64(len(call)))

		conn.SetReadDeadline(time.Now().Add(cfg.EventTimeout))
		eventCtx, cancel := context.WithTimeout(ctx, cfg.EventTimeout)
		found, err := waitForToken(eventCtx, conn, token, counters, errCounts)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				errCounts.tokenMissing.Add(1)
				return fmt.Errorf("token not observed in updates")
			}
			return fmt.Errorf("wait for token: %w", err)
		}
		if !found {
			errCounts.tokenMissing.Add(1)
			return fmt.Errorf("token not observed in updates")
		}

		counters.eventsComplete.Add(1)
		samples <- time.Since(start)

		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// waitForToken reads messages until an update carries token.
func waitForToken(
	ctx context.Context,
	conn *websocket.Conn,
	token string,
	counters *benchCounters,
	errCounts *benchErrors,
) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return false, err
		}
		msg, err := protocol.ParseMessage(string(raw))
		if err != nil {
			errCounts.decodeFailures.Add(1)
			return false, err
		}
		counters.addMessage(msg.Kind)

		switch msg.Kind {
		case protocol.KindAck:
			counters.acks.Add(1)
		case protocol.KindUpdate, protocol.KindReplaceWindow:
			counters.updateBytes.Add(uint64(len(raw)))
			if strings.Contains(msg.Markup, token) {
				return true, nil
			}
		}
	}
}

// makeToken returns a unique payload. The leading letter keeps the
// parameter codec from reading it as a number.
func makeToken(clientID int, seq uint64, payloadBytes int) string {
	if payloadBytes <= 0 {
		return ""
	}
	seed := (uint64(clientID) << 32) ^ seq
	base := "t" + strconv.FormatUint(seed, 36)
	if len(base) >= payloadBytes {
		return base[:1] + base[len(base)-payloadBytes+1:]
	}
	return base + strings.Repeat("_", payloadBytes-len(base))
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	idx = min(max(idx, 0), len(sorted)-1)
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Protocol   protocolInfo   `json:"protocol"`
	Sessions   sessionInfo    `json:"sessions"`
	Errors     errorInfo      `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
}

type workloadInfo struct {
	Profile        string  `json:"profile"`
	Clients        int     `json:"clients"`
	DurationMS     int64   `json:"duration_ms"`
	RPSPerClient   float64 `json:"rps_per_client"`
	ListSize       int     `json:"list_size"`
	PayloadBytes   int     `json:"payload_bytes"`
	IntervalMS     int64   `json:"interval_ms"`
	EventTimeoutMS int64   `json:"event_timeout_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	EventsTotal        uint64  `json:"events_total"`
	EventsPerSec       float64 `json:"events_per_sec"`
	EventsPerSecClient float64 `json:"events_per_sec_per_client"`
}

type gcInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	HeapLiveMB   float64 `json:"heap_live_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
}

type protocolInfo struct {
	EventBytesTotal  uint64            `json:"event_bytes_total"`
	UpdateBytesTotal uint64            `json:"update_bytes_total"`
	AvgEventBytes    float64           `json:"avg_event_bytes"`
	AvgUpdateBytes   float64           `json:"avg_update_bytes"`
	Acks             uint64            `json:"acks"`
	Messages         map[string]uint64 `json:"messages"`
}

type sessionInfo struct {
	Created uint64 `json:"created"`
	Peak    int    `json:"peak"`
}

type errorInfo struct {
	TotalErrors        uint64 `json:"total_errors"`
	HandshakeFailures  uint64 `json:"handshake_failures"`
	EventWriteFailures uint64 `json:"event_write_failures"`
	DecodeFailures     uint64 `json:"decode_failures"`
	TokenMissing       uint64 `json:"token_missing"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errs *benchErrors,
	before runtime.MemStats,
	after runtime.MemStats,
	stats server.ManagerStats,
) benchReport {
	eventsTotal := counters.eventsComplete.Load()
	eventsSent := counters.eventsSent.Load()
	eventBytes := counters.eventBytes.Load()
	updateBytes := counters.updateBytes.Load()

	eventsPerSec := float64(eventsTotal) / math.Max(0.001, elapsed.Seconds())

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	avgEventBytes := 0.0
	if eventsSent > 0 {
		avgEventBytes = float64(eventBytes) / float64(eventsSent)
	}
	avgUpdateBytes := 0.0
	if eventsTotal > 0 {
		avgUpdateBytes = float64(updateBytes) / float64(eventsTotal)
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
		},
		Workload: workloadInfo{
			Profile:        cfg.Profile,
			Clients:        cfg.Clients,
			DurationMS:     cfg.Duration.Milliseconds(),
			RPSPerClient:   cfg.RPS,
			ListSize:       cfg.ListSize,
			PayloadBytes:   cfg.PayloadBytes,
			IntervalMS:     cfg.Interval.Milliseconds(),
			EventTimeoutMS: cfg.EventTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			EventsTotal:        eventsTotal,
			EventsPerSec:       eventsPerSec,
			EventsPerSecClient: eventsPerSec / float64(cfg.Clients),
		},
		GC: gcInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:   float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:        after.NumGC - before.NumGC,
			PauseTotalMS: ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
		},
		Protocol: protocolInfo{
			EventBytesTotal:  eventBytes,
			UpdateBytesTotal: updateBytes,
			AvgEventBytes:    avgEventBytes,
			AvgUpdateBytes:   avgUpdateBytes,
			Acks:             counters.acks.Load(),
			Messages:         counters.messageSnapshot(),
		},
		Sessions: sessionInfo{
			Created: stats.TotalCreated,
			Peak:    stats.Peak,
		},
		Errors: errorInfo{
			TotalErrors:        errs.totalErrors.Load(),
			HandshakeFailures:  errs.handshakeFailures.Load(),
			EventWriteFailures: errs.eventWriteFailures.Load(),
			DecodeFailures:     errs.decodeFailures.Load(),
			TokenMissing:       errs.tokenMissing.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== tether load benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Clients: %d\n", report.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f events/s\n", report.Workload.RPSPerClient)
	fmt.Fprintf(w, "List size: %d\n", report.Workload.ListSize)
	fmt.Fprintf(w, "Tick interval: %dms\n", report.Workload.IntervalMS)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total events: %d\n", report.Throughput.EventsTotal)
	fmt.Fprintf(w, "Throughput: %.1f events/s (%.2f per client)\n", report.Throughput.EventsPerSec, report.Throughput.EventsPerSecClient)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors.TotalErrors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (callback sent -> update carrying the value received):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Protocol (avg per event):")
	fmt.Fprintf(w, "  callback bytes: %.1f\n", report.Protocol.AvgEventBytes)
	fmt.Fprintf(w, "  update bytes:   %.1f\n", report.Protocol.AvgUpdateBytes)
	fmt.Fprintf(w, "  acks:           %d\n", report.Protocol.Acks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// newLoadApp builds an input that echoes its value into a div and into one
// list item chosen by hash, so each event dirties two nodes.
func newLoadApp(listSize int) server.RootFactory {
	return func(*server.Session) *vdom.Node {
		root := vdom.New("div", vdom.A("class", "bench"))

		input := vdom.New("input", vdom.A("type", "text"))
		input.BindEventParams("oninput", "input", vdom.A("value", "this.value"))

		echo := vdom.New("div", vdom.A("class", "echo"))

		list := vdom.New("ul")
		items := make([]*vdom.Node, listSize)
		for i := range items {
			li := vdom.New("li")
			li.Attach("text", vdom.Text(fmt.Sprintf("Item %d", i)))
			list.Attach(strconv.Itoa(i), li)
			items[i] = li
		}

		input.Handle("input", func(args vdom.Args) error {
			value := fmt.Sprint(args["value"])
			echo.Attach("text", vdom.Text(value))
			if len(items) > 0 {
				items[fnv1a32(value)%uint32(len(items))].Attach("text", vdom.Text(value))
			}
			return nil
		})

		root.Attach("input", input)
		root.Attach("echo", echo)
		root.Attach("list", list)
		return root
	}
}

func fnv1a32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

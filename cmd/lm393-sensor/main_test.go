package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/lm393-sensor/internal/gpio"
	"github.com/sweeney/lm393-sensor/internal/logic"
	"github.com/sweeney/lm393-sensor/internal/mqtt"
	"github.com/sweeney/lm393-sensor/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestNewConfig(t *testing.T) {
	cfg, err := newConfig(10, 50*time.Millisecond, time.Minute, 17, "UP", "", "id", ":8080", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.pull != gpio.PullUp {
		t.Errorf("pull: got %q, want up", cfg.pull)
	}
	if cfg.window != 10 || cfg.interval != 50*time.Millisecond {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestNewConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		window   int
		interval time.Duration
		pull     string
	}{
		{"zero window", 0, time.Second, "down"},
		{"negative window", -3, time.Second, "down"},
		{"zero interval", 10, 0, "down"},
		{"bad pull", 10, time.Second, "float"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newConfig(tt.window, tt.interval, 0, 17, tt.pull, "", "", "", false); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample logic.Sample, n int) []logic.Sample {
	out := make([]logic.Sample, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (logic.Sample, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return logic.SampleLow, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type harness struct {
	out       *bytes.Buffer
	pub       *mqtt.FakePublisher
	tracker   *status.Tracker
	debouncer *logic.Debouncer
	reporter  *reporter
}

func newHarness(t *testing.T, window int) *harness {
	t.Helper()
	d, err := logic.NewDebouncer(window)
	if err != nil {
		t.Fatalf("NewDebouncer: %v", err)
	}
	h := &harness{
		out:       &bytes.Buffer{},
		pub:       mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{WindowSize: window}),
		debouncer: d,
	}
	h.pub.Connected = true
	h.reporter = &reporter{out: h.out, publisher: h.pub, mqttStatus: h.pub, tracker: h.tracker}
	return h
}

func (h *harness) lines() []string {
	s := strings.TrimSpace(h.out.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// drive seeds from reader, runs runLoop for nTicks, then delivers signal.
func (h *harness) drive(t *testing.T, reader gpio.Reader, heartbeat time.Duration, nTicks int, signal os.Signal) error {
	t.Helper()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	if err := seed(reader, h.debouncer, h.reporter, clock); err != nil {
		return err
	}

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(reader, h.debouncer, h.reporter, heartbeat, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopBaselineOnly(t *testing.T) {
	h := newHarness(t, 10)
	reader := gpio.NewFakeReader(repeat(logic.SampleLow, 20))

	if err := h.drive(t, reader, 0, 10, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"0 Sensor LOW (average)", "Stopped."}
	got := h.lines()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("output: got %q, want %q", got, want)
	}
	if len(h.pub.Events) != 1 {
		t.Errorf("expected 1 published event (baseline), got %d", len(h.pub.Events))
	}
	if len(h.pub.SystemEvents) != 1 || h.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected single SHUTDOWN event, got %+v", h.pub.SystemEvents)
	}
	if h.pub.SystemEvents[0].Reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", h.pub.SystemEvents[0].Reason)
	}
}

func TestRunLoopRisingEdge(t *testing.T) {
	h := newHarness(t, 10)
	samples := append(repeat(logic.SampleLow, 10), repeat(logic.SampleHigh, 10)...)
	reader := gpio.NewFakeReader(samples)

	if err := h.drive(t, reader, 0, 10, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{
		"0 Sensor LOW (average)",
		"1 Sensor HIGH (average)",
		"Stopped.",
	}
	got := h.lines()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("output: got %q, want %q", got, want)
	}

	if len(h.pub.Events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(h.pub.Events))
	}
	high := h.pub.Events[1]
	if high.State != logic.StateHigh || high.Count != 1 || high.Average != 0.6 {
		t.Errorf("HIGH event: got %+v", high)
	}
	if h.pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("reason: got %q, want SIGINT", h.pub.SystemEvents[0].Reason)
	}

	snap := h.tracker.Snapshot()
	if snap.Sensor.State != logic.StateHigh || snap.Sensor.ChangeCount != 2 {
		t.Errorf("tracker: got %+v", snap.Sensor)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should reflect MQTT connectivity")
	}
}

func TestRunLoopIgnoresGlitches(t *testing.T) {
	h := newHarness(t, 10)
	samples := append(repeat(logic.SampleHigh, 10),
		logic.SampleLow, logic.SampleHigh, logic.SampleLow, logic.SampleHigh, logic.SampleHigh,
		logic.SampleLow, logic.SampleHigh, logic.SampleHigh, logic.SampleHigh, logic.SampleHigh)
	reader := gpio.NewFakeReader(samples)

	if err := h.drive(t, reader, 0, 10, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.Events) != 1 {
		t.Errorf("glitches should not produce events, got %d", len(h.pub.Events))
	}
}

func TestRunLoopSkipsReadErrors(t *testing.T) {
	h := newHarness(t, 10)
	samples := append(repeat(logic.SampleLow, 10), repeat(logic.SampleHigh, 20)...)
	// Seed consumes calls 0-9; ticks 10-12 fail.
	reader := &faultReader{inner: gpio.NewFakeReader(samples), faultStart: 10, faultEnd: 13}

	if err := h.drive(t, reader, 0, 9, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// Six good HIGH reads are needed; only the last six ticks succeed.
	if len(h.pub.Events) != 2 {
		t.Fatalf("expected baseline and HIGH, got %d events", len(h.pub.Events))
	}
	if h.pub.Events[1].State != logic.StateHigh {
		t.Errorf("expected HIGH, got %s", h.pub.Events[1].State)
	}
}

func TestSeedFailsOnReadError(t *testing.T) {
	h := newHarness(t, 10)
	reader := gpio.NewFakeReader(repeat(logic.SampleLow, 10))
	reader.ReadError = errors.New("no chip")

	err := seed(reader, h.debouncer, h.reporter, time.Now)
	if err == nil {
		t.Fatal("expected seed error")
	}
	if h.debouncer.IsSeeded() || h.debouncer.Len() != 0 {
		t.Error("debouncer must be untouched when seeding fails")
	}
	if h.out.Len() != 0 {
		t.Errorf("nothing should be printed, got %q", h.out.String())
	}
}

func TestRunLoopPublishErrorDoesNotStop(t *testing.T) {
	h := newHarness(t, 4)
	h.pub.PublishError = errors.New("broker down")
	samples := append(repeat(logic.SampleLow, 4), repeat(logic.SampleHigh, 4)...)
	reader := gpio.NewFakeReader(samples)

	if err := h.drive(t, reader, 0, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"0 Sensor LOW (average)", "1 Sensor HIGH (average)", "Stopped."}
	if got := h.lines(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("output: got %q, want %q", got, want)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness(t, 10)
	reader := gpio.NewFakeReader(repeat(logic.SampleHigh, 10))

	// Clock steps 50ms per call; 100ms heartbeat fires every other tick.
	if err := h.drive(t, reader, 100*time.Millisecond, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats int
	for _, e := range h.pub.SystemEvents {
		if e.Event == "HEARTBEAT" {
			heartbeats++
			if len(e.RawPayload) == 0 {
				t.Error("heartbeat should carry a status payload")
			}
		}
	}
	if heartbeats != 2 {
		t.Errorf("expected 2 heartbeats, got %d", heartbeats)
	}
	last := h.pub.SystemEvents[len(h.pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" {
		t.Errorf("last system event: got %s, want SHUTDOWN", last.Event)
	}
}

func TestSampleString(t *testing.T) {
	if sampleString(logic.SampleHigh) != "HIGH" {
		t.Error("SampleHigh should print HIGH")
	}
	if sampleString(logic.SampleLow) != "LOW" {
		t.Error("SampleLow should print LOW")
	}
}

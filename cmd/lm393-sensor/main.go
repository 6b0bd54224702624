// Command lm393-sensor debounces an LM393 comparator module on a GPIO pin and
// logs (and optionally publishes to MQTT) every change of its averaged state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/lm393-sensor/internal/gpio"
	"github.com/sweeney/lm393-sensor/internal/logic"
	"github.com/sweeney/lm393-sensor/internal/metrics"
	"github.com/sweeney/lm393-sensor/internal/mqtt"
	"github.com/sweeney/lm393-sensor/internal/status"
	"github.com/sweeney/lm393-sensor/internal/web"
)

type config struct {
	window     int
	interval   time.Duration
	heartbeat  time.Duration
	pin        int
	pull       gpio.Pull
	broker     string
	clientID   string
	httpAddr   string
	printState bool
}

func main() {
	window := flag.Int("window", logic.DefaultWindowSize, "Number of samples averaged per decision")
	interval := flag.Duration("interval", 50*time.Millisecond, "Sampling interval")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	pin := flag.Int("pin", gpio.DefaultPin, "BCM pin number of the sensor DO output")
	pull := flag.String("pull", string(gpio.PullDown), "Input bias: up, down or none")
	broker := flag.String("broker", "", "MQTT broker address (empty to disable)")
	clientID := flag.String("client-id", "lm393-sensor", "MQTT client ID")
	httpAddr := flag.String("http", ":8080", "HTTP status address (empty to disable)")
	printState := flag.Bool("print-state", false, "Print current raw sensor state and exit")

	flag.Parse()

	cfg, err := newConfig(*window, *interval, *heartbeat, *pin, *pull, *broker, *clientID, *httpAddr, *printState)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newConfig(window int, interval, heartbeat time.Duration, pin int, pull, broker, clientID, httpAddr string, printState bool) (config, error) {
	if window <= 0 {
		return config{}, fmt.Errorf("window must be positive, got %d", window)
	}
	if interval <= 0 {
		return config{}, fmt.Errorf("interval must be positive, got %v", interval)
	}
	p, err := gpio.ParsePull(pull)
	if err != nil {
		return config{}, err
	}
	return config{
		window:     window,
		interval:   interval,
		heartbeat:  heartbeat,
		pin:        pin,
		pull:       p,
		broker:     broker,
		clientID:   clientID,
		httpAddr:   httpAddr,
		printState: printState,
	}, nil
}

func run(cfg config) error {
	// Initialize GPIO
	reader, err := gpio.NewRealReader(cfg.pin, cfg.pull)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if cfg.printState {
		s, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("Sensor: %s (raw %d)\n", sampleString(s), s)
		return nil
	}

	debouncer, err := logic.NewDebouncer(cfg.window)
	if err != nil {
		return err
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.broker != "" {
		p := mqtt.NewRealPublisher(cfg.broker, cfg.clientID)
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		WindowSize:  cfg.window,
		IntervalMs:  cfg.interval.Milliseconds(),
		HeartbeatMs: cfg.heartbeat.Milliseconds(),
		Pin:         cfg.pin,
		Pull:        string(cfg.pull),
		Broker:      cfg.broker,
		HTTPAddr:    cfg.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	// Interrupts during seeding must not be lost.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	r := &reporter{out: os.Stdout, publisher: publisher, mqttStatus: mqttStatus, tracker: tracker}
	if err := seed(reader, debouncer, r, time.Now); err != nil {
		return err
	}

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	log.Printf("started: window=%d interval=%v pin=%d pull=%s broker=%q heartbeat=%v",
		cfg.window, cfg.interval, cfg.pin, cfg.pull, cfg.broker, cfg.heartbeat)

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	return runLoop(reader, debouncer, r, cfg.heartbeat, time.Now, ticker.C, sigCh)
}

// reporter fans state changes out to the output line, MQTT, metrics and
// the status tracker.
type reporter struct {
	out        io.Writer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker    *status.Tracker
}

func (r *reporter) change(event logic.ChangeEvent, at time.Time) {
	fmt.Fprintln(r.out, event.String())
	metrics.ObserveChange(event)
	r.tracker.RecordChange(at)
	if err := r.publisher.Publish(event, at); err != nil {
		metrics.PublishErrors.WithLabelValues("event").Inc()
		log.Printf("publish error: %v", err)
	}
}

func (r *reporter) refresh(d *logic.Debouncer) {
	r.tracker.Update(d)
	metrics.ObserveWindow(d.Average(), d.State())
	if r.mqttStatus != nil {
		r.tracker.SetMQTTConnected(r.mqttStatus.IsConnected())
	}
}

func (r *reporter) system(event mqtt.SystemEvent) {
	if err := r.publisher.PublishSystem(event); err != nil {
		metrics.PublishErrors.WithLabelValues("system").Inc()
		log.Printf("failed to publish %s event: %v", event.Event, err)
	}
}

// seed fills the debouncer's window with synchronous reads and reports the
// baseline state.
func seed(reader gpio.Reader, d *logic.Debouncer, r *reporter, now func() time.Time) error {
	samples := make([]logic.Sample, d.Cap())
	for i := range samples {
		s, err := reader.Read()
		if err != nil {
			return fmt.Errorf("seed read %d/%d: %w", i+1, len(samples), err)
		}
		metrics.ObserveSample(s)
		samples[i] = s
	}

	baseline, err := d.Seed(samples)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	r.change(baseline, now())
	r.refresh(d)
	return nil
}

func runLoop(reader gpio.Reader, d *logic.Debouncer, r *reporter, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now(), heartbeat)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			r.refresh(d)
			snap := r.tracker.Snapshot()
			r.system(mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			})
			fmt.Fprintln(r.out, "Stopped.")
			return nil

		case <-tick:
			t := now()
			sample, err := reader.Read()
			if err != nil {
				metrics.ReadErrors.Inc()
				log.Printf("gpio read error: %v", err)
				continue
			}
			metrics.ObserveSample(sample)

			if event, changed := d.Update(sample); changed {
				r.change(event, t)
			}
			r.refresh(d)

			if hbData := hb.Check(t, d.State(), d.Counts()); hbData != nil {
				log.Printf("heartbeat: uptime=%v state=%s changes=%d high=%d low=%d",
					hbData.Uptime, hbData.State, d.ChangeCount(), hbData.Counts.High, hbData.Counts.Low)
				if net := readNetworkInfo(); net != nil {
					r.tracker.SetNetwork(net)
				}
				snap := r.tracker.Snapshot()
				r.system(mqtt.SystemEvent{
					Timestamp:  hbData.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				})
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func sampleString(s logic.Sample) string {
	if s == logic.SampleHigh {
		return string(logic.StateHigh)
	}
	return string(logic.StateLow)
}

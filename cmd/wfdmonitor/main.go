// Command wfdmonitor attaches to a wpa_supplicant control socket and
// prints every parsed P2P/AP event it receives until interrupted, while
// a background ticker submits periodic STATUS polls through the same
// command dispatcher that would serialize any other caller's requests.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chenbd/go-wfd/pkg/session"
	"github.com/chenbd/go-wfd/pkg/wfdconfig"
	"github.com/chenbd/go-wfd/pkg/wfderr"
	"github.com/chenbd/go-wfd/pkg/wfdlog"
	"github.com/chenbd/go-wfd/pkg/wfdmetrics"
	"github.com/chenbd/go-wfd/pkg/wpactrl"
)

func main() {
	fs := flag.NewFlagSet("wfdmonitor", flag.ExitOnError)
	logFlags := wfdlog.RegisterFlags(fs)

	envPath := fs.String("env", ".env", "Path to the key=value config file")
	ctrlPath := fs.String("ctrl-path", "", "wpa_supplicant control socket path (overrides the config file; @abstract: prefix selects the abstract namespace)")
	metricsAddr := fs.String("metrics-addr", "", "Address to serve /metrics on (overrides the config file; empty keeps the config file's setting)")
	statusInterval := fs.Duration("status-interval", 5*time.Second, "How often to poll STATUS through the command dispatcher (0 disables)")
	requestRate := fs.Float64("request-rate", 5, "Max dispatcher requests per second against the supplicant (0 disables limiting)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Attaches to a wpa_supplicant control socket and prints decoded P2P/AP events.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		wfdlog.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logger: %v\n", err)
		os.Exit(1)
	}
	log, err := wfdlog.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	wfdlog.SetDefault(log)

	log.Info("starting wfdmonitor", "log_config", logFlags.String())

	cfg, err := wfdconfig.Load(*envPath)
	if err != nil {
		log.Warn("falling back to defaults", "env", *envPath, "error", err)
		cfg = wfdconfig.Default()
	}
	if *ctrlPath != "" {
		cfg.Supplicant.CtrlPath = *ctrlPath
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	collector := wfdmetrics.NewCollector(prometheus.Labels{"ctrl_path": cfg.Supplicant.CtrlPath})
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		log.Info("metrics listening", "addr", cfg.Metrics.ListenAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client := wpactrl.NewClient(
		wpactrl.WithLogger(log.Logger),
		wpactrl.WithEventCallback(func(raw []byte) {
			ev, err := wpactrl.ParseEvent(string(raw))
			if err != nil {
				log.DebugWPA("event payload error", "raw", string(raw), "error", err)
				return
			}
			collector.IncEvent(wpactrl.EventName(ev.Type))
			log.Info("supplicant event",
				"type", wpactrl.EventName(ev.Type),
				"priority", ev.Priority,
				"raw", ev.Raw)
		}),
	)

	if err := client.Open(cfg.Supplicant.CtrlPath); err != nil {
		log.Error("failed to open supplicant control channel", "ctrl_path", cfg.Supplicant.CtrlPath, "error", err)
		os.Exit(1)
	}
	defer client.Close()
	log.Info("attached to supplicant", "ctrl_path", cfg.Supplicant.CtrlPath)

	// client documents that it is not safe for concurrent use; once the
	// dispatcher is started its worker goroutine is client's only
	// caller; nothing else in this process may call client.Request or
	// client.Dispatch directly.
	dispatcher := session.NewDispatcher(client, *requestRate, log.Logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	if *statusInterval > 0 {
		go pollStatus(ctx, dispatcher, *statusInterval, collector, log)
	}

	<-ctx.Done()
	if err := dispatcher.Err(); err != nil {
		log.Error("dispatcher reported a client error", "error", err)
		collector.IncRequest(wfdmetrics.OutcomePipeClosed)
	}
}

// pollStatus periodically issues STATUS through dispatcher, demonstrating
// (and exercising) the command-submission path alongside the event
// stream the dispatcher's worker pumps from client in the background.
func pollStatus(ctx context.Context, dispatcher *session.Dispatcher, interval time.Duration, collector *wfdmetrics.Collector, log *wfdlog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reply, err := dispatcher.Submit(ctx, "STATUS", session.PriorityPoll, 2*time.Second)
			if err != nil {
				log.DebugWPA("status poll failed", "error", err)
				collector.IncRequest(classifyOutcome(err))
				continue
			}
			log.DebugWPA("status poll", "bytes", len(reply))
			collector.IncRequest(wfdmetrics.OutcomeOK)
		}
	}
}

func classifyOutcome(err error) wfdmetrics.RequestOutcome {
	switch {
	case errors.Is(err, wfderr.ErrTimeout):
		return wfdmetrics.OutcomeTimeout
	case errors.Is(err, wfderr.ErrPipeClosed):
		return wfdmetrics.OutcomePipeClosed
	case errors.Is(err, wfderr.ErrProtocolMalformed):
		return wfdmetrics.OutcomeProtocolMalformed
	default:
		return wfdmetrics.OutcomeTimeout
	}
}

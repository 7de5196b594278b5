package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/config"
	"github.com/arvindsheth/sheetfeed/internal/core"
	"github.com/arvindsheth/sheetfeed/internal/observ"
	"github.com/arvindsheth/sheetfeed/internal/producer"
	"github.com/arvindsheth/sheetfeed/internal/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath string
	var mode string
	var replayPath string
	var replaySpeed float64
	var demoSymbols string
	var demoRate float64
	var metricsAddr string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.StringVar(&mode, "producer", "demo", "producer: demo or replay")
	flag.StringVar(&replayPath, "replay-file", "", "JSONL file to replay (producer=replay)")
	flag.Float64Var(&replaySpeed, "replay-speed", 1.0, "replay pacing multiplier, 0 = as fast as possible")
	flag.StringVar(&demoSymbols, "demo-symbols", "AAPL,MSFT,BTC.D", "comma-separated symbols for the demo producer")
	flag.Float64Var(&demoRate, "demo-rate", 50, "ticks per second for the demo producer")
	flag.StringVar(&metricsAddr, "metrics-addr", "127.0.0.1:8090", "metrics/health HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}

	observ.Log("startup", map[string]any{
		"config_path":   cfgPath,
		"producer_mode": mode,
		"flush_policy":  cfg.FlushPolicy,
	})

	buffer := core.NewCoalescingBuffer()
	policy := core.NewBatchPolicy(cfg.Batch.HighWatermark, cfg.Batch.MaxAge, cfg.Batch.PrioritySymbols)
	metrics := core.NewMetrics()
	retention := core.NewRetentionStore(cfg.Retention.MaxTicksPerSymbol, cfg.Retention.Window)
	freshness := core.NewFreshnessTracker()
	dispatcher := core.NewDispatcher(buffer, policy, metrics, retention, freshness, cfg.StaleThreshold)

	gate := core.NewBackoffGate(cfg.Backoff.Base, cfg.Backoff.Max, cfg.Backoff.WarnEveryNth)
	recorder := sink.NewStdoutRecorder(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := recorder.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sink open: %v\n", err)
		return 1
	}

	scheduler := core.NewFlushScheduler(buffer, policy, metrics, gate, recorder, cfg.Batch.FlushInterval, cfg.FlushPolicy, cfg.GracefulShutdown)
	scheduler.Start(ctx)

	var prod producer.Producer
	switch mode {
	case "demo":
		prod = producer.NewDemo(dispatcher, splitSymbols(demoSymbols), demoRate)
	case "replay":
		if replayPath == "" {
			fmt.Fprintln(os.Stderr, "producer=replay requires -replay-file")
			return 2
		}
		prod = producer.NewReplay(dispatcher, replayPath, replaySpeed)
	default:
		fmt.Fprintf(os.Stderr, "unknown producer mode %q\n", mode)
		return 2
	}
	if err := prod.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "producer start: %v\n", err)
		return 1
	}

	stopHeartbeat := startHeartbeat(ctx, dispatcher, metrics, cfg.HeartbeatInterval)
	stopMetricsServer := startMetricsServer(metricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	observ.Log("shutdown_begin", nil)

	// The producer is stopped before the scheduler (spec.md §5).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown)
	defer shutdownCancel()
	_ = prod.Stop(shutdownCtx)
	stopHeartbeat()
	scheduler.Stop()
	_ = recorder.Close(shutdownCtx)
	stopMetricsServer()

	observ.Log("shutdown_complete", nil)
	return 0
}

func splitSymbols(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// startHeartbeat runs the heartbeat task spec.md §5 calls for: a
// long-lived loop, separate from the scheduler, that periodically calls
// queue_heartbeat with cumulative counters.
func startHeartbeat(ctx context.Context, dispatcher *core.Dispatcher, metrics *core.Metrics, interval time.Duration) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snapshot := metrics.Snapshot(
					dispatcher.StaleCount(),
					dispatcher.RetentionTotalEvicted(),
					dispatcher.RetentionLastEvictionBatch(),
					dispatcher.InstrumentCount(),
				)
				dispatcher.QueueHeartbeat(time.Now().UTC(), snapshot)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func startMetricsServer(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	mux.Handle("/metrics/prometheus", observ.PrometheusHandler())
	mux.Handle("/health", observ.Health())
	mux.Handle("/healthz", observ.HealthHandler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	observ.Log("metrics_listen", map[string]any{"addr": addr})
	go func() { _ = server.ListenAndServe() }()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

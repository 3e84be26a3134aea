package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/reid/internal/audit"
	"github.com/your-org/reid/internal/config"
	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/internal/observability"
	"github.com/your-org/reid/internal/queue"
	"github.com/your-org/reid/internal/storage"
	"github.com/your-org/reid/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":8082", "metrics and health listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting identity worker",
		"workers", cfg.Worker.Count,
		"cpu_cores", runtime.NumCPU(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Identity engine
	engineCfg := cfg.Identity.EngineConfig()
	engine, err := vision.NewEngine(engineCfg, &vision.SequenceMinter{})
	if err != nil {
		slog.Error("init identity engine", "error", err)
		os.Exit(1)
	}

	if cfg.Identity.WarmStart {
		var since time.Time
		if engineCfg.TTL > 0 {
			since = time.Now().Add(-engineCfg.TTL)
		}
		ids, err := db.LoadIdentities(ctx, since)
		if err != nil {
			slog.Warn("load identities", "error", err)
		} else {
			n, err := engine.Index().Restore(ids)
			if err != nil {
				slog.Warn("skipped stored identities", "error", err)
			}
			slog.Info("identity index warm-started", "identities", n, "loaded", len(ids))
		}
	}

	// Assignment audit
	var sink vision.AuditSink
	if cfg.Audit.Enabled {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		auditSink := audit.NewSink(minioStore, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
		auditSink.SetMaxPending(cfg.Audit.MaxPending)
		auditSink.OnFlush(func(n int) { observability.AuditRecordsFlushed.Add(float64(n)) })
		go auditSink.Run(ctx)
		sink = auditSink
	}

	pipeline := vision.NewPipeline(engine, db, producer, sink, vision.PipelineOptions{
		MaxMissed:           cfg.Tracking.MaxMissed,
		MaintenanceInterval: cfg.Worker.MaintenanceInterval,
	})
	go pipeline.Run(ctx)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeFrames(ctx, "identity-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.FrameTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal frame task", "error", err, "subject", msg.Subject())
			return nil // Don't retry on unmarshal errors
		}

		if err := pipeline.ProcessFrame(ctx, task); err != nil {
			return fmt.Errorf("process frame %s: %w", task.FrameID, err)
		}
		return nil
	}, cfg.Worker.Count)
	if err != nil {
		slog.Error("start frame consumer", "error", err)
		os.Exit(1)
	}

	// Queue depth gauge
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Metrics endpoint
	srv := &http.Server{Addr: *metricsAddr, Handler: workerMux(db)}
	go func() {
		slog.Info("worker metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	// let in-flight frames and the final audit flush finish
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

func workerMux(db *storage.PostgresStore) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

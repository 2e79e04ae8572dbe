package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netsight/internal/capture"
	"netsight/internal/config"
	"netsight/internal/engine"
	"netsight/internal/handlers"
	"netsight/internal/insight"
	"netsight/internal/metrics"
	"netsight/internal/mirror"
	"netsight/internal/simulator"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}
	timeout, _ := cfg.Insight.RequestTimeout()
	interval, _ := cfg.Simulator.TickInterval()

	reg := metrics.NewRegistry()
	eng := engine.New(reg)

	if cfg.NATS.URL != "" {
		pub, err := mirror.NewPublisher(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to create NATS mirror: %v", err)
		}
		defer pub.Close()
		eng.SetMirror(pub)
	}

	recorder := capture.NewRecorder(cfg.Capture.RingSize)
	sim := simulator.New(eng, simulator.Config{
		Interval:         interval,
		AlertProbability: cfg.Simulator.AlertProbability,
		Recorder:         recorder,
		Metrics:          reg,
	})

	client := insight.NewClient(cfg.Insight.Endpoint, cfg.Insight.APIKeys,
		insight.WithTimeout(timeout),
		insight.WithMetrics(reg),
	)

	server := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: handlers.NewRouter(handlers.Deps{
			Engine:      eng,
			Insight:     client,
			Capture:     recorder,
			Metrics:     reg,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Simulator stopped: %v", err)
		}
	}()

	go func() {
		log.Printf("netsight listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	<-simDone
	log.Println("Server exited.")
}

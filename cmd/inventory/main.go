package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ScanInventory/internal/config"
	"ScanInventory/internal/inventory"
	"ScanInventory/pkg/kit"
)

const rateSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrapFatal("load config failed", err)
	}

	log, err := kit.NewLogger(cfg.Service, cfg.LogLevel)
	if err != nil {
		bootstrapFatal("init logger failed", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("config loaded", zap.Any("config", cfg.Redacted()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	backend, err := openBackend(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("open backend failed", zap.Error(err), zap.String("backend", string(cfg.Backend)))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn("close backend failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := &inventory.Service{
		Store: inventory.NewStore(backend, inventory.StoreOptions{
			Lenient: cfg.LenientDecode,
			Log:     log,
		}),
		Publisher: inventory.NopPublisher{},
		Metrics:   inventory.NewMetrics(reg),
		Log:       log,
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := inventory.NewKafkaPublisher(log, cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = pub.Close() }()
		svc.Publisher = pub
		log.Info("publishing inventory events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	limiter := kit.NewIPRateLimiter(cfg.RateLimit, cfg.RateWindowSeconds)
	stopSweep := sweepRateLimiter(limiter)
	defer stopSweep()

	s := &inventory.Server{
		Service:         svc,
		Log:             log,
		MutationLimiter: limiter,
	}

	h := inventory.NewHandler(s, inventory.HTTPDeps{
		Log:            log,
		Service:        cfg.Service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,

		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	if err := kit.RunHTTPServer(cfg.Addr(), h, log, cfg.ShutdownTimeout); err != nil {
		log.Error("http server stopped", zap.Error(err))
	}
}

// bootstrapFatal reports failures that happen before the configured logger
// exists.
func bootstrapFatal(msg string, err error) {
	log, lerr := kit.NewLogger("inventory", "info")
	if lerr != nil {
		os.Exit(1)
	}
	log.Fatal(msg, zap.Error(err))
}

func sweepRateLimiter(l *kit.IPRateLimiter) func() {
	t := time.NewTicker(rateSweepInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-t.C:
				l.Sweep(now)
			case <-done:
				return
			}
		}
	}()
	return func() {
		t.Stop()
		close(done)
	}
}

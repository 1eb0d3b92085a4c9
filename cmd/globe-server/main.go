package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/impact-globe/internal/config"
	"github.com/signalsfoundry/impact-globe/internal/imagery"
	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/internal/observability"
	"github.com/signalsfoundry/impact-globe/internal/session"
	"github.com/signalsfoundry/impact-globe/internal/surface"
	"github.com/signalsfoundry/impact-globe/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Optional config file (yaml, json or toml)")
	addr := flag.String("addr", "", "HTTP address for the scene server; overrides server.addr")
	flag.Parse()

	log := logging.NewFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ServerAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "globe server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves one scene session over lis until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener) error {
	tracing := cfg.Tracing
	tracing.Scene = observability.SceneAttributes(string(cfg.Tier), cfg.Seed, "websocket")
	shutdownTracing, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSceneCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		return fmt.Errorf("load detail profiles: %w", err)
	}

	var objects imagery.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		store, err := imagery.NewMinIOStore(cfg.MinIO)
		if err != nil {
			log.Warn(ctx, "object store unavailable; skipping", logging.String("endpoint", cfg.MinIO.Endpoint), logging.Err(err))
		} else {
			objects = store
		}
	}
	loader := imagery.NewLoader(objects, cfg.ImageryTimeout, log)

	hubCfg := surface.DefaultHubConfig()
	hubCfg.OnDrop = collector.IncDroppedFrames
	hub, err := surface.NewHub(hubCfg, log)
	if err != nil {
		return fmt.Errorf("init surface: %w", err)
	}

	sess, err := session.New(ctx, hub,
		session.WithLogger(log),
		session.WithMetricsRecorder(collector),
		session.WithProfiles(profiles),
		session.WithTier(cfg.Tier),
		session.WithSeed(cfg.Seed),
		session.WithImagery(loader, cfg.ImageryChain),
		session.WithRefreshSource(timectrl.TickerSource{Interval: cfg.FrameInterval}),
	)
	if err != nil {
		_ = sess.Close()
		return err
	}
	hub.SetHandler(sess)

	loopDone, err := sess.Start(ctx)
	if err != nil {
		_ = sess.Close()
		return err
	}

	srv := &http.Server{
		Handler:           newRouter(sess, hub, collector, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "serving globe scene", logging.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	log.Info(context.Background(), "shutting down globe server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if cerr := sess.Close(); cerr != nil && err == nil {
		err = cerr
	}
	<-loopDone
	return err
}

func newRouter(sess *session.Session, hub *surface.Hub, collector *observability.SceneCollector, log logging.Logger) *mux.Router {
	api := &sceneAPI{sess: sess, log: log}
	r := mux.NewRouter()
	r.Handle("/ws", collector.Middleware("ws", hub))
	r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	r.Handle("/healthz", collector.Middleware("healthz", http.HandlerFunc(api.health))).Methods(http.MethodGet)
	r.Handle("/impact", collector.Middleware("impact", http.HandlerFunc(api.putImpact))).Methods(http.MethodPut)
	r.Handle("/impact", collector.Middleware("impact", http.HandlerFunc(api.deleteImpact))).Methods(http.MethodDelete)
	r.Handle("/object", collector.Middleware("object", http.HandlerFunc(api.putObject))).Methods(http.MethodPut)
	r.Handle("/object", collector.Middleware("object", http.HandlerFunc(api.deleteObject))).Methods(http.MethodDelete)
	r.Handle("/simulations", collector.Middleware("simulations", http.HandlerFunc(api.beginSimulation))).Methods(http.MethodPost)
	r.Handle("/simulations/{generation}", collector.Middleware("simulations", http.HandlerFunc(api.deliverSimulation))).Methods(http.MethodPut)
	r.Handle("/hazard", collector.Middleware("hazard", http.HandlerFunc(api.hazard))).Methods(http.MethodGet)
	r.Handle("/pick", collector.Middleware("pick", http.HandlerFunc(api.pick))).Methods(http.MethodPost)
	r.Handle("/map/pick", collector.Middleware("map_pick", http.HandlerFunc(api.mapPick))).Methods(http.MethodPost)
	return r
}

func serveMetrics(addr string, collector *observability.SceneCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

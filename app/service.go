package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/battopt/api/middleware"
	"github.com/kilianp07/battopt/api/optimize"
	"github.com/kilianp07/battopt/api/runs"
	"github.com/kilianp07/battopt/api/stream"
	"github.com/kilianp07/battopt/config"
	"github.com/kilianp07/battopt/connectors"
	coremetrics "github.com/kilianp07/battopt/core/metrics"
	"github.com/kilianp07/battopt/core/milp"
	coremon "github.com/kilianp07/battopt/core/monitoring"
	coremqtt "github.com/kilianp07/battopt/core/mqtt"
	"github.com/kilianp07/battopt/core/optimizer"
	"github.com/kilianp07/battopt/core/runlog"
	"github.com/kilianp07/battopt/core/runner"
	"github.com/kilianp07/battopt/infra/logger"
	"github.com/kilianp07/battopt/infra/metrics"
	"github.com/kilianp07/battopt/infra/monitoring"
	"github.com/kilianp07/battopt/infra/mqtt"
	_ "github.com/kilianp07/battopt/infra/runlog"
	_ "github.com/kilianp07/battopt/infra/solver"
	"github.com/kilianp07/battopt/internal/eventbus"
)

// Service wires the optimizer to the broker, the HTTP API and the metric
// sinks.
type Service struct {
	Runner *runner.Runner
	cfg    *config.Config
	bus    *eventbus.Bus[eventbus.Event]
	client *mqtt.PahoClient
	sink   coremetrics.MetricsSink
	log    logger.Logger
}

// unavailableSource stands in for the forecast topic when the broker could
// not be reached at startup.
type unavailableSource struct{ err error }

func (u unavailableSource) FetchForecast(context.Context) ([]byte, error) { return nil, u.err }

// New creates a Service from the configuration. A broker that cannot be
// reached is logged and, unless forecasts come from a price API, every
// optimization request then fails with 503.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")
	gin.SetMode(gin.ReleaseMode)

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	solver, err := milp.NewSolver(cfg.Optimizer.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	planner := optimizer.New(cfg.Optimizer, solver, logger.New("optimizer"))

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := runlog.NewStore(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}

	var (
		forecast coremqtt.ForecastSource
		schedule coremqtt.SchedulePublisher
	)
	if cfg.Forecast.URL != "" {
		forecast = connectors.New(cfg.Forecast.URL, cfg.Forecast.Auth, cfg.Forecast.Timeout)
	}
	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		logg.Errorf("mqtt client: %v", err)
		if forecast == nil {
			forecast = unavailableSource{err: fmt.Errorf("%w: %w", coremqtt.ErrNotConnected, err)}
		}
	} else {
		if forecast == nil {
			forecast = mqtt.NewForecastSource(client, cfg.Forecast.Topic, cfg.Forecast.Timeout)
		}
		if !cfg.Schedule.Disabled {
			schedule = mqtt.NewSchedulePublisher(client, cfg.Schedule.Topic, cfg.Schedule.Retain)
		}
	}

	bus := eventbus.New()
	r, err := runner.New(planner, forecast, schedule, cfg.Battery, bus, logger.New("runner"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	r.SetRunStore(store)

	return &Service{Runner: r, cfg: cfg, bus: bus, client: client, sink: sink, log: logg}, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	apiLog := logger.New("api")
	router := gin.New()
	router.Use(middleware.Logger(apiLog), middleware.ErrorHandler(apiLog))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mqtt_connected": s.client != nil && s.client.IsConnected()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	optimize.NewHandler(s.Runner, s.cfg.Forecast.Source(), apiLog).Register(router)

	api := router.Group("/api", middleware.Auth(s.cfg.Server.APIToken, s.cfg.Server.JWTSecret))
	api.GET("/runs", gin.WrapH(runs.NewHandler(s.Runner.Store())))
	api.GET("/ws", gin.WrapH(stream.NewHandler(s.bus, s.cfg.Server.CORSOrigins, apiLog)))

	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)
}

// Run serves the API and records metrics until the context is cancelled or
// the listener fails.
func (s *Service) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	collected := metrics.StartEventCollector(runCtx, s.bus, s.sink)
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		s.log.Infof("listening on %s", s.cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
		return nil
	})

	err := g.Wait()
	cancel()
	<-collected
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Runner.Close()
	if s.client != nil {
		s.client.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	return err
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
	"github.com/turtacn/molcore/internal/config"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/molcore/internal/interfaces/http"
	"github.com/turtacn/molcore/internal/interfaces/http/handlers"
	"github.com/turtacn/molcore/internal/interfaces/http/middleware"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the molecule API over HTTP",
		Long: "serve exposes canonicalization, substructure matching, fingerprints and\n" +
			"similarity under /api/v1/molecules, probes on /healthz and /readyz and\n" +
			"Prometheus metrics. Editing the config file changes the log level live.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cliCtx.Config.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cliCtx.Config.Server.Port = port
			}
			if err := cliCtx.Config.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cliCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

// serverStack is everything serve wires together.
type serverStack struct {
	server  *httpserver.Server
	logger  logging.Logger
	service molapp.Service
}

// buildServer assembles logger, metrics, service, handlers, middleware and
// router from cfg.
func buildServer(cfg *config.Config) (*serverStack, error) {
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.Output,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)

	routerCfg := httpserver.RouterConfig{Logger: logger}
	svcOpts := []molapp.ServiceOption{molapp.WithLogger(logger)}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return nil, err
		}
		metrics := prometheus.NewChemMetrics(collector)
		svcOpts = append(svcOpts, molapp.WithMetrics(metrics))
		routerCfg.HTTPMetrics = metrics
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	svc, err := molapp.NewService(molapp.OptionsFromConfig(cfg.Chem), svcOpts...)
	if err != nil {
		return nil, err
	}
	routerCfg.MoleculeHandler = handlers.NewMoleculeHandler(svc, logger, cfg.Server.MaxBodySize)
	routerCfg.HealthHandler = handlers.NewHealthHandler(Version, handlers.NewChemistryChecker(svc))

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Metrics.Path != "" {
		logCfg.SkipPaths = append(logCfg.SkipPaths, cfg.Metrics.Path)
	}
	routerCfg.Logging = &logCfg

	if cfg.Server.RateLimit > 0 {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit,
			Burst:             cfg.Server.RateBurst,
		})
		if err != nil {
			return nil, err
		}
		routerCfg.RateLimiter = limiter
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		routerCfg.CORS = &cors
	}

	return &serverStack{
		server:  httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger),
		logger:  logger,
		service: svc,
	}, nil
}

// runServe serves until ctx is cancelled, then shuts down within
// server.shutdown_timeout.
func runServe(ctx context.Context, cliCtx *CLIContext) error {
	cfg := cliCtx.Config
	stack, err := buildServer(cfg)
	if err != nil {
		return err
	}
	logger := stack.logger
	defer func() { _ = logger.Sync() }()

	if cliCtx.ConfigPath != "" {
		err := config.Watch(cliCtx.ConfigPath, func(next *config.Config) {
			if logging.SetLevel(logger, next.Log.Level) {
				logger.Info("log level reloaded", logging.String("level", next.Log.Level))
			}
		}, func(err error) {
			logger.Warn("ignoring invalid config change", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	logger.Info("starting molcore server",
		logging.String("version", Version),
		logging.String("addr", cfg.Server.Addr()),
		logging.Int("query_cache_size", cfg.Chem.QueryCacheSize),
		logging.Bool("metrics", cfg.Metrics.Enabled),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- stack.server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := stack.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

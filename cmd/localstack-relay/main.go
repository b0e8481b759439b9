package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/lqqyt2423/go-mitmproxy/proxy"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"localstack-relay/internal/addon"
	"localstack-relay/internal/client"
	"localstack-relay/internal/config"
	"localstack-relay/internal/handler"
	"localstack-relay/internal/logging"
	"localstack-relay/internal/metrics"
	"localstack-relay/internal/middleware"
	"localstack-relay/internal/relay"
	"localstack-relay/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cli struct {
	Version kong.VersionFlag `kong:"help='Print version and exit.'"`

	Serve  serveCmd  `kong:"cmd,default='withargs',help='Run the intercepting proxy and the plain-HTTP gateway (default).'"`
	Report reportCmd `kong:"cmd,help='Check a ScoutSuite results file collected through the relay.'"`
}

type serveCmd struct {
	config.CLI `kong:"embed"`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("localstack-relay"),
		kong.Description("Redirects AWS API traffic to a local LocalStack emulator."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)
	ctx.FatalIfErrorf(ctx.Run())
}

func (s *serveCmd) Run() error {
	app := fx.New(
		fx.Provide(
			func() *config.CLI { return &s.CLI },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newRelay,
			addon.New,
			newMitmProxy,
			newEcho,
			client.NewEmulatorClient,
			service.NewRelayService,
			handler.NewRelayHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer, startProxy),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	w := logging.Output(&cfg.Log)
	logging.ConfigureLogrus(logrus.StandardLogger(), &cfg.Log, w)
	return logging.NewLogger(&cfg.Log, w)
}

func newRelay(cfg *config.Config) (*relay.Relay, error) {
	return relay.New(cfg.Emulator.Target())
}

// newMitmProxy returns nil when the intercepting proxy is disabled.
func newMitmProxy(cfg *config.Config, a *addon.Addon) (*proxy.Proxy, error) {
	if !cfg.ProxyEnabled() {
		return nil, nil
	}
	p, err := proxy.NewProxy(&proxy.Options{
		Addr:              cfg.Proxy.Addr,
		StreamLargeBodies: cfg.Proxy.StreamLargeBodies,
		SslInsecure:       cfg.Proxy.SSLInsecure,
		CaRootPath:        cfg.Proxy.CARootPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create intercepting proxy: %w", err)
	}
	p.AddAddon(a)
	return p, nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) so large streamed S3 downloads are not cut
	// off. The upstream client timeout bounds each relayed call instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Pre(middleware.RejectConnect())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger, config.ReservedPrefix))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Gateway.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders(config.ReservedPrefix))

	if cfg.Gateway.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Gateway.RateLimit.RequestsPerSecond))
		logger.Info("rate limiter enabled", "rps", cfg.Gateway.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Gateway.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting gateway", "addr", addr, "emulator", cfg.Emulator.Target().URL())
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("gateway error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down gateway")
			return e.Shutdown(ctx)
		},
	})
}

func startProxy(lc fx.Lifecycle, p *proxy.Proxy, cfg *config.Config, logger *slog.Logger) {
	if p == nil {
		logger.Info("intercepting proxy disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("starting intercepting proxy",
				"addr", cfg.Proxy.Addr,
				"ca_root_path", cfg.Proxy.CARootPath,
			)
			go func() {
				if err := p.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("intercepting proxy error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("shutting down intercepting proxy")
			return p.Close()
		},
	})
}

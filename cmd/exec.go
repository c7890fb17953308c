package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ticket-market/config"
	"ticket-market/handlers"
	"ticket-market/internal/auth"
	"ticket-market/internal/expiration"
	"ticket-market/internal/notify"
	"ticket-market/internal/payments"
	"ticket-market/internal/services"
	"ticket-market/internal/session"
	"ticket-market/internal/store"
	"ticket-market/migrations"
	"ticket-market/monitoring"
	"ticket-market/security"
	"ticket-market/utils"
)

var rootCmd = &cobra.Command{
	Use:           "ticket-market",
	Short:         "Ticket marketplace API, session relay and maintenance tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd(), relayCmd(), migrateCmd(), sweepCmd(), watchCmd())
}

// Execute runs the command line until it finishes or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, the expiration sweeper and the metrics endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return Start(cmd.Context(), cfg)
		},
	}
}

// app is the wired backend shared by serve and sweep.
type app struct {
	store   *store.Store
	redis   *redis.Client
	orders  *services.OrderService
	sources []expiration.Source
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.store.Close()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.Run(ctx, st.DB()); err != nil {
		st.Close()
		return nil, err
	}

	a := &app{store: st}
	orderOpts := []services.OrderOption{
		services.WithOrderTTL(cfg.OrderTTL),
		services.WithNotifier(newNotifier(cfg)),
	}

	if cfg.RedisURL != "" {
		a.redis, err = utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		schedule := expiration.NewRedisSchedule(a.redis)
		orderOpts = append(orderOpts, services.WithScheduler(schedule))
		a.sources = append(a.sources, schedule)
	} else {
		slog.Warn("REDIS_URL not set: rate limiting off, sweeping from the store only")
	}

	a.orders = services.NewOrderService(st, orderOpts...)
	a.sources = append(a.sources, expiration.NewStoreScan(a.orders))
	return a, nil
}

func newNotifier(cfg *config.Config) services.Notifier {
	if cfg.PubNubPublishKey == "" {
		return notify.Nop{}
	}
	return notify.NewPubNub(notify.Config{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
		UserID:       cfg.PubNubUserID,
	})
}

func newGateway(cfg *config.Config) (payments.Gateway, error) {
	if cfg.GatewayURL != "" {
		return payments.NewHTTPGateway(payments.ClientConfig{
			BaseURL: cfg.GatewayURL,
			APIKey:  cfg.GatewayKey,
			HMACKey: cfg.GatewayHMACKey,
			Timeout: cfg.GatewayTimeout,
		}), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("GATEWAY_URL is required in production")
	}
	slog.Warn("GATEWAY_URL not set: using the in-memory test gateway")
	return payments.NewFake(nil), nil
}

// Start runs the API server, the sweeper and, when enabled, the metrics
// server until ctx is done or one of them fails.
func Start(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), nil)
	var (
		authOpts    []auth.Option
		handlerOpts = []handlers.Option{handlers.WithHealthCheck("store", a.store.Ping)}
	)
	if a.redis != nil {
		rdb := a.redis
		authOpts = append(authOpts, auth.WithLimiter(security.NewRateLimiter(rdb, cfg.SigninRateLimit, cfg.SigninRateWindow)))
		handlerOpts = append(handlerOpts,
			handlers.WithRateLimiter(security.NewRateLimiter(rdb, 30, time.Minute)),
			handlers.WithHealthCheck("redis", func(ctx context.Context) error {
				return utils.RedisHealthCheck(ctx, rdb)
			}),
		)
	}

	tickets := services.NewTicketService(a.store, a.orders)
	pay := services.NewPaymentService(a.orders, gateway, cfg.GatewayCurrency)
	authSvc := auth.NewService(a.store, sessions, authOpts...)

	e := echo.New()
	handlers.New(authSvc, tickets, a.orders, pay, handlerOpts...).Register(e)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(serveHTTP(ctx, "api", ":"+cfg.Port, e))
	g.Go(func() error {
		return expiration.NewSweeper(a.orders, cfg.SweepInterval, a.sources).Run(ctx)
	})
	if cfg.EnableMetrics {
		g.Go(serveHTTP(ctx, "metrics", ":"+cfg.MetricsPort, monitoring.Handler()))
		g.Go(func() error {
			return monitoring.NewMonitor(a.redis, expiration.ScheduleKey).Run(ctx)
		})
	}

	err = g.Wait()
	slog.Info("Shutdown complete")
	return err
}

// serveHTTP returns an errgroup func running h on addr until ctx is done.
func serveHTTP(ctx context.Context, name, addr string, h http.Handler) func() error {
	return func() error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "server", name, "addr", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("%s server: %w", name, err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			slog.Info("Shutting down HTTP server", "server", name)
			return srv.Shutdown(shutdownCtx)
		}
	}
}

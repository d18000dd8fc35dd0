package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/config"
	"github.com/adi-253/duochat/internal/handlers"
	"github.com/adi-253/duochat/internal/logging"
	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/services"
	"github.com/adi-253/duochat/internal/session"
	"github.com/adi-253/duochat/internal/store"
	"github.com/adi-253/duochat/internal/store/memstore"
	"github.com/adi-253/duochat/internal/store/mongostore"
	"github.com/adi-253/duochat/internal/store/sqlstore"
	"github.com/adi-253/duochat/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

var v = viper.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "duochat",
	Short:        "Real-time one-to-one chat backend with delivery receipts, presence and task messages",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, log)
	},
}

// init is the initialization function for Cobra which defines flags.
func init() {
	if err := config.BindFlags(rootCmd.Flags(), v); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize services
	tracker := session.NewTracker()
	hub := websocket.NewHub(log.Named("ws"), tracker, m)
	defer hub.Close()

	chat := services.NewChatService(log.Named("chat"), st, tracker, hub, services.ChatOptions{Metrics: m})
	notes := services.NewNoteService(st)
	notifications := services.NewNotificationService(st, cfg.NotificationPageSize)
	drafts := services.NewTaskDraftService(st)

	if cfg.PresenceRetention > 0 {
		janitor := services.NewPresenceJanitor(log.Named("janitor"), tracker, m, cfg.PresenceSweepInterval, cfg.PresenceRetention)
		go janitor.Start()
		defer janitor.Stop()
	}

	wsHandler := websocket.NewHandler(log.Named("ws"), hub, chat, m, websocket.Limits{
		EventsPerSecond: cfg.WSEventsPerSecond,
		Burst:           cfg.WSEventBurst,
	})

	log.Info("CORS allowed origins", zap.Strings("origins", cfg.CORSOrigins))
	router := handlers.NewRouter(handlers.RouterConfig{
		Messages:      handlers.NewMessageHandler(log.Named("http"), chat, notes),
		Notifications: handlers.NewNotificationHandler(notifications),
		TaskDrafts:    handlers.NewTaskDraftHandler(drafts),
		Users:         handlers.NewUserHandler(chat),
		WebSocket:     wsHandler.ServeWS,
		Gatherer:      reg,
		CORSOrigins:   cfg.CORSOrigins,
		AccessLog:     true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("duochat backend starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// openStore connects the backend selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mongostore.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverSQLite, config.DriverPostgres:
		return sqlstore.New(cfg.StoreDriver, cfg.DatabaseDSN)
	case config.DriverMemory:
		return memstore.New(), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"srp-quiz-service/internal/app"
	"srp-quiz-service/internal/config"
	"srp-quiz-service/internal/logger"
	transport "srp-quiz-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	source, err := itemSource(cfg, d)
	if err != nil {
		return err
	}
	sink, err := resultSink(ctx, cfg, d)
	if err != nil {
		return err
	}
	service := app.NewQuizService(sessionStore(cfg, d), itemRepository(cfg, d, source, log), sink, app.NewCatalog(cfg.Quiz), log)

	router, err := transport.NewRouter(service, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	retryCtx, stopRetries := context.WithCancel(ctx)
	defer stopRetries()
	go service.RunRetries(retryCtx, time.Minute)

	go func() {
		log.Info("starting quiz service", "port", finalPort, "items_source", cfg.Items.Source, "results_backend", cfg.Results.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	stopRetries()
	if left := service.RetryPending(shutdownCtx); left > 0 {
		log.Error("unsubmitted sessions lost on shutdown", "count", left)
	}
	return err
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/config"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/service"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/store"
	"gitlab.com/dirk.krummacker/contacts-hypermedia/internal/validation"
)

// Usage example on the command line:
// > PORT=8080 CONTACTS_DATABASE_URL=contacts.db GIN_MODE=release go run main.go
// > PORT=8080 CONTACTS_DBDRIVER=mysql DBUSER=dirk DBPWD=bullo92 GIN_LOGGING=OFF go run main.go
func main() {
	cmd := &cobra.Command{
		Use:           "contacts-service",
		Short:         "Serve the contacts web application",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "contacts service failed:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Development: cfg.LogDevelopment})
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}
	}
	contacts, err := store.New(db)
	if err != nil {
		return err
	}
	defer contacts.Close()

	server := service.New(contacts, validation.New(contacts), log, service.Options{
		PageSize:       cfg.PageSize,
		SessionSecret:  cfg.SessionSecret,
		SessionSecure:  cfg.SessionSecure,
		RequestLogging: cfg.RequestLogging(),
		Metrics:        cfg.Metrics,
	})
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: server.SetupHttpRouter(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("contacts service listening", zap.String("addr", httpServer.Addr), zap.String("driver", cfg.DBDriver))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}

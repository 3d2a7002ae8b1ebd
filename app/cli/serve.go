package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-actions/app/api"
	"github.com/lysyi3m/rss-actions/app/cfg"
	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/feed"
	"github.com/lysyi3m/rss-actions/app/tasks"
)

type ServeCommand struct {
	Listen string `long:"listen" description:"Address for the status API, overrides the config file"`

	app *App
}

func (c *ServeCommand) Execute(args []string) error {
	config := cfg.Get()
	listen := cmp.Or(c.Listen, config.Listen)

	store, err := database.Open(config.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	downloader := feed.NewDownloader(nil, feed.NewParser(), cfg.UserAgent())
	scheduler := tasks.NewScheduler(store, downloader, feed.NewMatcher(feed.NewRunner()), config.Interval)

	// No write timeout: POST /api/update waits for a whole pass.
	httpServer := &http.Server{
		Addr:        listen,
		Handler:     api.NewServer(api.NewHandler(store, scheduler)),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	scheduler.Start()
	defer scheduler.Stop()

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", listen, "version", config.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return serveErr
}

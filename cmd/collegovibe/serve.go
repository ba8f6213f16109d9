package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"collegovibe/internal/di"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the chat relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		app, cleanup, err := di.InitializeApplication(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialise application: %w", err)
		}
		defer cleanup()
		log := app.Log

		if _, _, err := app.Stories.Recover(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("story recovery failed")
		}

		httpServer := &http.Server{
			Addr:           net.JoinHostPort(cfg.Server.Host, cfg.Server.HTTPPort),
			Handler:        app.Router,
			ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}

		lis, err := net.Listen("tcp", ":"+cfg.Server.ChatServicePort)
		if err != nil {
			return fmt.Errorf("failed to listen on port %s: %w", cfg.Server.ChatServicePort, err)
		}

		errCh := make(chan error, 2)
		go func() {
			log.Info().Str("addr", httpServer.Addr).Msg("HTTP server starting")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
		go func() {
			log.Info().Str("port", cfg.Server.ChatServicePort).Msg("chat relay starting")
			if err := app.GRPC.Serve(lis); err != nil {
				errCh <- fmt.Errorf("chat relay: %w", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
		case err = <-errCh:
			log.Error().Err(err).Msg("server failed, shutting down")
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
			log.Warn().Err(shutdownErr).Msg("HTTP server forced to shutdown")
		}
		stopGRPC(ctx, app)
		app.Presence.Clear()

		log.Info().Msg("shutdown complete")
		return err
	},
}

// stopGRPC drains live streams until ctx expires, then closes them.
func stopGRPC(ctx context.Context, app *di.Application) {
	done := make(chan struct{})
	go func() {
		app.GRPC.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		app.GRPC.Stop()
	}
}

func init() {
	serveCmd.Flags().String("http-port", "", "HTTP listen port (overrides HTTP_PORT)")
	serveCmd.Flags().String("chat-port", "", "chat relay listen port (overrides CHAT_SERVICE_PORT)")
	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetString("http-port"); v != "" {
			os.Setenv("HTTP_PORT", v)
		}
		if v, _ := cmd.Flags().GetString("chat-port"); v != "" {
			os.Setenv("CHAT_SERVICE_PORT", v)
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screenrelay/internal/config"
	"screenrelay/internal/coord"
	"screenrelay/internal/hostagent"
	"screenrelay/internal/input"
	"screenrelay/internal/logging"
	"screenrelay/internal/relay"
)

const reconnectDelay = 5 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "screenrelay",
		Short:        "Remote session relay and host agent",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), hostCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			log := logging.New(cfg.LogLevel)

			var store coord.Store
			if cfg.RedisAddr != "" {
				store = coord.NewRedis(cfg.RedisAddr)
				log.Info().Str("addr", cfg.RedisAddr).Msg("using redis coordination store")
			} else {
				store = coord.NewMemory()
			}

			srv := relay.NewServer(cfg, store, log)
			httpSrv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.ListenAddr).Msg("relay listening")
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutCtx)
		},
	}
}

func hostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Run the host agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			log := logging.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for {
				agent := hostagent.New(cfg, input.New(), log)
				err := agent.Run(ctx)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Msg("connection lost, reconnecting")
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(reconnectDelay):
				}
			}
		},
	}
}

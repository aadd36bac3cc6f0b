// Command server runs the Sequence game server: the /v1 request surface
// and the /ws duplex channel behind a single in-process Engine. Grounded
// on the teacher's cmd/server/main.go (a flat main wiring one GameServer
// and calling ListenAndServe) and on Seednode-partybox's cobra+viper root
// command, which is the pack's model for a configurable CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"sequence/internal/api"
	"sequence/internal/config"
	"sequence/internal/engine"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("sequence")
	v.AutomaticEnv()

	var configFile string

	cmd := &cobra.Command{
		Use:   "sequence-server",
		Short: "Runs the Sequence networked board game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config file: %w", err)
				}
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return run(cmd.Context(), config.Load(v))
		},
	}

	cmd.Flags().String("listen_addr", "", "address to listen on (default :8080)")
	cmd.Flags().String("server_name", "", "server name reported by /v1/ping")
	cmd.Flags().StringVar(&configFile, "config-file", "", "optional YAML config file")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.New(os.Stdout, "sequence ", log.LstdFlags)
	eng := engine.New(cfg, logger)
	srv := api.New(eng, cfg.ServerName, cfg.Version, logger)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return httpServer.Close()
	})

	return g.Wait()
}

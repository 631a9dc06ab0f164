package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postmedia/internal/server"
	"postmedia/pkg/logger"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP resolve service",
	Long: `Run the HTTP service.

Endpoints:
  GET  /healthz   liveness
  POST /resolve   {"url": "..."} -> resolved media`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := globalFlags()
		if serveAddr != "" {
			flags["addr"] = serveAddr
		}
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.NewServer(newResolver(cfg), cfg.Server, logger.GetLogger()).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rahul/sentinel/internal/observability"
	"github.com/rahul/sentinel/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review and diagram HTTP API",
	Long: `Serve exposes the Terraform review and diagram endpoints:

  POST /process_terraform/
  POST /generate_infrastructure_diagram/
  POST /generate_security_graph/

Enabled gateways receive a summary of every finished review, and the
telegram gateway also accepts goals from its configured chat.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	notifier, tg := a.messengers()
	if tg != nil {
		go func() {
			if err := tg.Start(ctx); err != nil {
				a.logger.Error("telegram gateway stopped", "err", err)
			}
		}()
	}

	observability.PrintBanner(os.Stdout, [][2]string{
		{"listen", addr},
		{"provider", a.providerName},
		{"model", a.modelName},
		{"workspace", a.workspace.Dir},
	})

	srv := server.New(server.Options{
		Reviewer:       a.orchestrator,
		Diagrams:       a.diagrams,
		Workspace:      a.workspace,
		Prompts:        a.prompts,
		Tracker:        a.tracker,
		Logger:         a.logger,
		Gatherer:       a.registry,
		Notifier:       notifier,
		Gate:           a.gate,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		RunTimeout:     a.cfg.Server.RunTimeout,
	})
	return srv.ListenAndServe(ctx, addr)
}

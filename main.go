package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"presstalk/internal/bootstrap"
	"presstalk/internal/terminal"
	"presstalk/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "presstalk",
		Short:        "Press-and-hold voice widget",
		Long:         "Hold the control, speak, release: the recording is sent to the voice backend and the reply is shown and played.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesktop()
		},
	}
	root.AddCommand(newServeCmd(), newTalkCmd())
	return root
}

func runDesktop() error {
	app := NewApp()
	return wails.Run(&options.App{
		Title:     "presstalk",
		Width:     440,
		Height:    560,
		MinWidth:  320,
		MinHeight: 420,
		AssetServer: &assetserver.Options{
			Assets: web.Assets(),
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget to a browser",
		Long:  "Serve the widget page, its websocket and the metrics endpoint over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := bootstrap.Build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = services.Config.Serve.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := web.NewServer(ctx, services.Controller, services.View, services.Metrics, services.Logger.WithPrefix("web"))
			defer server.Close()
			return server.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from PRESSTALK_SERVE_ADDR or 127.0.0.1:8765)")
	return cmd
}

func newTalkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "talk",
		Short: "Push-to-talk from the terminal",
		Long:  "Press Enter to start recording and Enter again to send. Replies are printed and played with ffplay.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := bootstrap.Build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shell := terminal.NewShell(
				services.Controller,
				services.View,
				services.Player,
				cmd.OutOrStdout(),
				services.Logger.WithPrefix("talk"),
			)
			err = shell.Run(ctx, cmd.InOrStdin())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gauntlet/internal/engine"
	"gauntlet/internal/server"
)

var serveHTTPAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tool surface",
	Long: `Serve the MCP tool surface on stdio, or over streamable HTTP
with --http.

Examples:
  gauntlet serve
  gauntlet serve --http 127.0.0.1:8712`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "Serve over streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	srv := server.New(cfg, engine.New(cfg))

	addr := serveHTTPAddr
	if addr == "" {
		addr = cfg.Server.HTTPAddr
	}
	if addr != "" {
		logger.Info("serving MCP over HTTP", zap.String("addr", addr))
		return srv.ServeHTTP(ctx, addr)
	}

	logger.Info("serving MCP on stdio")
	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

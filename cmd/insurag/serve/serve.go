// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/api"
	"github.com/papercomputeco/insurag/api/mcp"
	apicmder "github.com/papercomputeco/insurag/cmd/insurag/serve/api"
	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/config"
)

type serveCommander struct {
	logger *slog.Logger
}

const serveLongDesc string = `Run insurag services.

"insurag serve" runs the full service: the HTTP API, the MCP endpoint at /mcp,
background indexing workers and the periodic index sweeper. Logs are also
appended as JSON to insurag.log in the .insurag directory.

Use subcommands to run individual services:
  insurag serve          Run the API, MCP endpoint and background indexing
  insurag serve api      Run just the API server, indexing each write inline`

const serveShortDesc string = "Run insurag services"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := stack.LoadConfig(cmd, config.ServerFlags, stack.ServerFlagKeys(config.FlagAPIListen))
			if err != nil {
				return err
			}
			log, logFile, err := stack.NewServiceLogger(cmd)
			if err != nil {
				return err
			}
			defer logFile.Close()

			cmder.logger = log
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), cfg, configDir)
		},
	}

	stack.RegisterServerFlags(cmd, config.FlagAPIListen)

	cmd.AddCommand(apicmder.NewAPICmd())

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config, configDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := stack.Build(ctx, cfg, stack.Options{
		ConfigDir:  configDir,
		Background: true,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.logger.Error("closing services", "error", err)
		}
	}()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Router: s.Router,
		Logger: c.logger.With("component", "mcp"),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Sweeper:    s.Sweeper,
		MCP:        mcpServer.Handler(),
	}, s.Router, s.Records, c.logger.With("component", "api"))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	go s.Sweeper.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return apiServer.Shutdown()
	}
}

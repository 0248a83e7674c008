// Package apicmder provides the API insurag server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/api"
	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/config"
)

type apiCommander struct {
	logger *slog.Logger
}

const apiLongDesc string = `Run the insurag API server for asking questions about insurance records
and managing those records.

Every write is indexed before the request returns. Use "insurag serve" for
background indexing, the index sweeper and the MCP endpoint.`

const apiShortDesc string = "Run the insurag API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := stack.LoadConfig(cmd, config.ServerFlags, stack.ServerFlagKeys(config.FlagAPIListenStandalone))
			if err != nil {
				return err
			}
			cmder.logger = stack.NewLogger(cmd)
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), cfg, configDir)
		},
	}

	stack.RegisterServerFlags(cmd, config.FlagAPIListenStandalone)

	return cmd
}

func (c *apiCommander) run(ctx context.Context, cfg *config.Config, configDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer s.Close()

	server, err := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, s.Router, s.Records, c.logger.With("component", "api"))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return server.Shutdown()
	}
}

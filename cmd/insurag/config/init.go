package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/pkg/cliui"
	"github.com/papercomputeco/insurag/pkg/config"
)

const initLongDesc string = `Write a config.toml for one of the provider presets.

Presets:
  ollama     local embeddings and answers through Ollama (the default)
  openai     OpenAI embeddings and chat completions
  anthropic  Anthropic answers with Ollama embeddings
  offline    in-memory stores and a local hashing embedder, no network

An existing config.toml is left untouched unless --force is given.

Examples:
  insurag config init
  insurag config init --preset offline
  insurag config init --preset openai --force`

const initShortDesc string = "Write a config file from a preset"

func newInitCmd() *cobra.Command {
	var (
		preset string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd.OutOrStdout(), configDir, preset, force)
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "ollama", "Preset: "+strings.Join(config.ValidPresetNames(), ", "))
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(w io.Writer, configDir, preset string, force bool) error {
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", target)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Wrote %s preset to %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strings.ToLower(preset)),
		cliui.DimStyle.Render(target),
	)
	return nil
}

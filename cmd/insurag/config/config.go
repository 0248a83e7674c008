// Package configcmder provides the config command for managing persistent
// insurag configuration stored in the .insurag/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/pkg/config"
)

const configLongDesc string = `Manage persistent insurag configuration.

Configuration is stored as config.toml in the .insurag/ directory and provides
default values for command flags. CLI flags and INSURAG_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example
storage.provider, vector_store.target, embedding.model, llm.provider,
rag.top_k or indexing.workers. Run "insurag config list" for every key.

Examples:
  insurag config init --preset openai
  insurag config set llm.provider anthropic
  insurag config set rag.min_similarity 0.6
  insurag config get embedding.model
  insurag config list`

const configShortDesc string = "Manage persistent insurag configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

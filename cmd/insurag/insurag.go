// Package insuragcmder provides the root insurag command.
package insuragcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/insurag/cmd/insurag/ask"
	authcmder "github.com/papercomputeco/insurag/cmd/insurag/auth"
	configcmder "github.com/papercomputeco/insurag/cmd/insurag/config"
	reindexcmder "github.com/papercomputeco/insurag/cmd/insurag/reindex"
	seedcmder "github.com/papercomputeco/insurag/cmd/insurag/seed"
	servecmder "github.com/papercomputeco/insurag/cmd/insurag/serve"
	statuscmder "github.com/papercomputeco/insurag/cmd/insurag/status"
	versioncmder "github.com/papercomputeco/insurag/cmd/version"
)

const insuragLongDesc string = `insurag answers questions about insurance records with retrieval
augmented generation.

Customers, policies, claims and documents are embedded into a vector store as
they are written. Questions are matched against those records and answered by
the configured model, citing the records it used.

Run services using:
  insurag serve api      Run the API server
  insurag serve          Run the API, MCP endpoint and background indexing

Work with records and the index:
  insurag seed           Load demo or fixture records
  insurag ask            Ask a question through a running server
  insurag reindex        Rebuild the vector index
  insurag status         Show server health and index state`

const insuragShortDesc string = "insurag - insurance record RAG"

func NewInsuragCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "insurag",
		Short:         insuragShortDesc,
		Long:          insuragLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .insurag/ config directory")
	cmd.PersistentFlags().String("log-format", "auto", "Log output: auto, pretty, json or text")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(reindexcmder.NewReindexCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

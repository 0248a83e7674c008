// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/pkg/cliui"
	"github.com/papercomputeco/insurag/pkg/utils"
)

// Info is the build metadata printed by the version command.
type Info struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
}

func NewVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build metadata as JSON")

	return cmd
}

func run(w io.Writer, asJSON bool) error {
	info := Info{Version: utils.Version, Sha: utils.Sha, Buildtime: utils.Buildtime}
	if asJSON {
		return json.NewEncoder(w).Encode(info)
	}

	fmt.Fprintf(w, "%s %s\n%s %s\n%s %s\n",
		cliui.KeyStyle.Render("Version: "), info.Version,
		cliui.KeyStyle.Render("Sha:     "), info.Sha,
		cliui.KeyStyle.Render("Built at:"), info.Buildtime,
	)
	return nil
}

// Package seedcmder provides the seed command for loading insurance records
// into the local store.
package seedcmder

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/cliui"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/seed"
)

const seedLongDesc string = `Seed insurance records into the configured record store.

Records are indexed as they are written, so the configured embedding provider
and vector store must be reachable. Without --file the bundled demo data
(customers, policies, claims and documents) is loaded.

Examples:
  insurag seed
  insurag seed --file ./records.yaml
  insurag seed --skip-existing
  insurag seed --sqlite ./insurag.sqlite --embedding-provider hashing`

const seedShortDesc string = "Seed insurance records"

type seedCommander struct {
	file         string
	skipExisting bool
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := stack.LoadConfig(cmd, config.ServerFlags, stack.LocalFlagKeys())
			if err != nil {
				return err
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg, configDir)
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "YAML fixture to load instead of the demo data")
	cmd.Flags().BoolVar(&cmder.skipExisting, "skip-existing", false, "Skip records whose id already exists")
	stack.RegisterFlags(cmd, stack.LocalFlagKeys())

	return cmd
}

func (c *seedCommander) run(ctx context.Context, w io.Writer, cfg *config.Config, configDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fixture, err := c.load()
	if err != nil {
		return err
	}

	s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir})
	if err != nil {
		return err
	}
	defer s.Close()

	var rep seed.Report
	if err := cliui.Step(w, "Seeding insurance records", func() error {
		var seedErr error
		rep, seedErr = seed.Apply(ctx, s.Records, fixture, c.skipExisting)
		return seedErr
	}); err != nil {
		return err
	}

	status, err := s.Records.Status(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, st := range status {
		failed += st.Failed
	}

	fmt.Fprintf(w, "\n  %s Seeded %s records %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(rep.Created)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d skipped)", rep.Skipped)),
	)
	if failed > 0 {
		fmt.Fprintf(w, "  %s %d records failed to index; run %s once the embedder is reachable\n",
			cliui.WarnStyle.Render("!"), failed, cliui.NameStyle.Render("insurag reindex"))
	}
	fmt.Fprintln(w)
	return nil
}

func (c *seedCommander) load() (*seed.Fixture, error) {
	if c.file != "" {
		return seed.LoadFile(c.file)
	}
	return seed.Demo()
}

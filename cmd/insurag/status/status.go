// Package statuscmder provides the status command for displaying the health
// and index state of a running insurag server.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/api/client"
	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/cliui"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/records"
)

const statusLongDesc string = `Show the health and index state of a running insurag server.

For each collection the number of stored records is shown alongside how many
are indexed, failed their last indexing attempt, or are waiting to be indexed.

Examples:
  insurag status
  insurag status --api-target http://localhost:8081`

const statusShortDesc string = "Show server health and index state"

type statusCommander struct {
	apiTarget string
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := stack.LoadConfig(cmd, config.ClientFlags, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *statusCommander) run(ctx context.Context, w io.Writer) error {
	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	health, err := cl.Health(ctx)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}

	mark := cliui.SuccessMark
	if !health.Healthy() {
		mark = cliui.FailMark
	}
	fmt.Fprintf(w, "\n  %s %s %s  %s\n",
		mark,
		cliui.NameStyle.Render(health.Service),
		cliui.ValueStyle.Render(health.Status),
		cliui.DimStyle.Render(c.apiTarget),
	)

	status, err := cl.IndexStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetching index status: %w", err)
	}

	fmt.Fprintf(w, "\n%s\n\n", renderTable(status))
	return nil
}

func renderTable(status map[entity.Collection]records.CollectionStatus) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(cliui.DimStyle).
		Headers("COLLECTION", "TOTAL", "INDEXED", "FAILED", "PENDING").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return cliui.HeaderStyle.Padding(0, 1)
			case col == 0:
				return cliui.KeyStyle.Padding(0, 1)
			default:
				return cliui.ValueStyle.Padding(0, 1).Align(lipgloss.Right)
			}
		})

	for _, col := range entity.Collections() {
		st := status[col]
		t.Row(
			string(col),
			strconv.Itoa(st.Total),
			strconv.Itoa(st.Indexed),
			strconv.Itoa(st.Failed),
			strconv.Itoa(st.Pending),
		)
	}
	return t.Render()
}

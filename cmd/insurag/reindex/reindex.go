// Package reindexcmder provides the reindex command for rebuilding the
// vector index of stored records.
package reindexcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/insurag/api/client"
	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/cliui"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/indexing"
)

const reindexLongDesc string = `Rebuild the vector index of stored records.

With no arguments every record in every collection is re-embedded. Name a
collection to limit the run to it, or a collection and id to reindex a single
record. Reindexing runs in process against the configured stores.

Use --sweep to ask a running server to enqueue every record that is missing
from the index or changed since it was last indexed, or --remote to reindex a
single record through a running server.

Examples:
  insurag reindex
  insurag reindex claims
  insurag reindex customers cust-42
  insurag reindex --sweep --api-target http://localhost:8081
  insurag reindex claims C-1 --remote`

const reindexShortDesc string = "Rebuild the vector index"

type reindexCommander struct {
	sweep     bool
	remote    bool
	apiTarget string
	progress  bool
}

func NewReindexCmd() *cobra.Command {
	cmder := &reindexCommander{}

	cmd := &cobra.Command{
		Use:   "reindex [collection] [id]",
		Short: reindexShortDesc,
		Long:  reindexLongDesc,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			w := cmd.OutOrStdout()

			if cmder.sweep {
				if len(args) > 0 {
					return errors.New("--sweep does not take arguments")
				}
				cfg, err := stack.LoadConfig(cmd, config.ClientFlags, []string{config.FlagAPITarget})
				if err != nil {
					return err
				}
				return cmder.runSweep(ctx, w, cfg.Client.APITarget)
			}

			if cmder.remote {
				if len(args) != 2 {
					return errors.New("--remote takes a collection and an id")
				}
				cfg, err := stack.LoadConfig(cmd, config.ClientFlags, []string{config.FlagAPITarget})
				if err != nil {
					return err
				}
				return cmder.runRemote(ctx, w, cfg.Client.APITarget, args[0], args[1])
			}

			cfg, err := stack.LoadConfig(cmd, config.ServerFlags, stack.LocalFlagKeys())
			if err != nil {
				return err
			}
			configDir, _ := cmd.Flags().GetString("config-dir")

			s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir, Logger: stack.NewLogger(cmd)})
			if err != nil {
				return err
			}
			defer s.Close()

			return cmder.runLocal(ctx, w, s, args)
		},
	}

	cmd.Flags().BoolVar(&cmder.sweep, "sweep", false, "Ask a running server to sweep for unindexed records")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Reindex one record through a running server")
	cmd.Flags().BoolVar(&cmder.progress, "progress", term.IsTerminal(int(os.Stderr.Fd())), "Show a progress bar")
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	stack.RegisterFlags(cmd, stack.LocalFlagKeys())

	return cmd
}

func (c *reindexCommander) runLocal(ctx context.Context, w io.Writer, s *stack.Stack, args []string) error {
	var collections []entity.Collection
	if len(args) > 0 {
		col, err := entity.ParseCollection(args[0])
		if err != nil {
			return err
		}
		collections = []entity.Collection{col}
	}

	if len(args) == 2 {
		res, err := s.Records.Reindex(ctx, collections[0], args[1])
		if err != nil {
			return err
		}
		printResult(w, res)
		if res.Outcome == indexing.OutcomeFailed {
			return fmt.Errorf("reindexing %s/%s: %s", res.Collection, res.ID, res.Reason)
		}
		return nil
	}

	total, err := s.Records.Count(ctx, collections...)
	if err != nil {
		return err
	}

	bar := c.newBar(total)
	summary, err := s.Records.ReindexAll(ctx, func(indexing.Result) {
		if bar != nil {
			_ = bar.Add(1)
		}
	}, collections...)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Reindexed %s records %s\n\n",
		cliui.Mark(nil),
		cliui.NameStyle.Render(strconv.Itoa(summary.Indexed)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d failed, %d skipped)", summary.Failed, summary.Skipped)),
	)
	if summary.Failed > 0 {
		return fmt.Errorf("%d records failed to index", summary.Failed)
	}
	return nil
}

func (c *reindexCommander) runSweep(ctx context.Context, w io.Writer, target string) error {
	cl, err := client.New(target)
	if err != nil {
		return err
	}

	rep, err := cl.Sweep(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Swept %s records\n",
		cliui.Mark(nil),
		cliui.NameStyle.Render(strconv.Itoa(rep.Scanned)),
	)

	cols := make([]string, 0, len(rep.Enqueued))
	for col := range rep.Enqueued {
		cols = append(cols, string(col))
	}
	sort.Strings(cols)
	for _, col := range cols {
		fmt.Fprintf(w, "  %s %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-10s", col)),
			cliui.ValueStyle.Render(fmt.Sprintf("%d enqueued", rep.Enqueued[entity.Collection(col)])),
		)
	}
	if rep.Dropped > 0 {
		fmt.Fprintf(w, "  %s %d records dropped; the index queue is full\n", cliui.WarnStyle.Render("!"), rep.Dropped)
	}
	fmt.Fprintln(w)
	return nil
}

func (c *reindexCommander) runRemote(ctx context.Context, w io.Writer, target, collection, id string) error {
	col, err := entity.ParseCollection(collection)
	if err != nil {
		return err
	}

	cl, err := client.New(target)
	if err != nil {
		return err
	}

	res, err := cl.Reindex(ctx, col, id)
	if err != nil {
		return err
	}
	printResult(w, res)
	if res.Outcome == indexing.OutcomeFailed {
		return fmt.Errorf("reindexing %s/%s: %s", res.Collection, res.ID, res.Reason)
	}
	return nil
}

func (c *reindexCommander) newBar(total int) *progressbar.ProgressBar {
	if !c.progress || total <= 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("reindexing"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func printResult(w io.Writer, res indexing.Result) {
	var err error
	if res.Outcome == indexing.OutcomeFailed {
		err = errors.New(res.Reason)
	}
	line := fmt.Sprintf("%s/%s", res.Collection, res.ID)
	fmt.Fprintf(w, "  %s %s %s\n", cliui.Mark(err), cliui.NameStyle.Render(line), cliui.DimStyle.Render(string(res.Outcome)))
}

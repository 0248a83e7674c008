// Package askcmder provides the ask command for querying a running insurag
// API server.
package askcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/api/client"
	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/cliui"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/rag"
)

type askCommander struct {
	scope  string
	userID string
	json   bool
	raw    bool

	apiTarget string
}

const askLongDesc string = `Ask a question about insurance records via the insurag API.

The question is embedded, matched against indexed records and answered by the
configured model. Use --scope to restrict retrieval to one collection:
customers, policies, claims, documents or general (the default, which
searches every collection).

Examples:
  insurag ask "which customers live in Denver?"
  insurag ask "what does policy P-100 cover?" --scope policies
  insurag ask "any open water damage claims?" --scope claims --json`

const askShortDesc string = "Ask a question about insurance records"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := stack.LoadConfig(cmd, config.ClientFlags, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVar(&cmder.scope, "scope", string(entity.ScopeGeneral), "Collection to search: customers, policies, claims, documents or general")
	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User id sent with the question")
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the raw JSON response")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the answer without markdown rendering")

	return cmd
}

func (c *askCommander) run(ctx context.Context, w io.Writer, question string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	scope, err := entity.ParseScope(c.scope)
	if err != nil {
		return err
	}

	cl, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	resp, err := cl.Ask(ctx, scope, rag.QueryRequest{Query: question, UserID: c.userID})
	if err != nil {
		return err
	}

	if c.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if !resp.Success {
		msg := resp.Error
		if resp.Details != "" {
			msg += ": " + resp.Details
		}
		return errors.New(msg)
	}

	return c.render(w, resp)
}

func (c *askCommander) render(w io.Writer, resp rag.QueryResponse) error {
	answer := resp.Answer
	if !c.raw {
		if rendered, err := cliui.RenderMarkdown(answer); err == nil {
			answer = rendered
		}
	}
	fmt.Fprintln(w, strings.TrimRight(answer, "\n"))

	if !resp.Grounded {
		fmt.Fprintf(w, "\n  %s\n", cliui.WarnStyle.Render("No matching records; the answer is not grounded in stored data."))
	}

	if len(resp.Sources) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n", cliui.HeaderStyle.Render("Sources"))
	for i, src := range resp.Sources {
		fmt.Fprintln(w, cliui.SourceLine(i+1, string(src.Collection)+"/"+src.EntityID, src.Similarity, src.RelevantInfo))
	}
	fmt.Fprintln(w)
	return nil
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/rag"
)

type queryTool struct {
	name        string
	description string
	scope       entity.Scope
}

var queryTools = []queryTool{
	{
		name:        "askQuestion",
		description: "Answer a general insurance question using every indexed record (customers, policies, claims and documents) as context.",
		scope:       entity.ScopeGeneral,
	},
	{
		name:        "queryCustomerRAG",
		description: "Answer a question about customers, grounded on the most similar customer records.",
		scope:       entity.ScopeCustomers,
	},
	{
		name:        "queryPoliciesRAG",
		description: "Answer a question about insurance policies, grounded on the most similar policy records.",
		scope:       entity.ScopePolicies,
	},
	{
		name:        "queryClaimsRAG",
		description: "Answer a question about claims, grounded on the most similar claim records.",
		scope:       entity.ScopeClaims,
	},
	{
		name:        "queryDocumentsRAG",
		description: "Answer a question from uploaded documents such as policy wordings and guidance.",
		scope:       entity.ScopeDocuments,
	},
}

// QueryInput represents the input arguments of every query tool.
type QueryInput struct {
	Query  string `json:"query" jsonschema:"the natural-language question"`
	UserID string `json:"userId,omitempty" jsonschema:"id of the user asking, recorded for auditing"`
}

// QueryOutput is the structured result of a query tool. Sources is never
// nil: the output schema requires an array.
type QueryOutput struct {
	Success    bool         `json:"success"`
	Answer     string       `json:"answer,omitempty"`
	Error      string       `json:"error,omitempty"`
	Grounded   bool         `json:"grounded"`
	Sources    []rag.Source `json:"sources"`
	MatchCount int          `json:"matchCount"`
}

func (s *Server) queryHandler(scope entity.Scope) func(context.Context, *mcp.CallToolRequest, QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		s.config.Logger.Debug("MCP query request", "scope", scope, "user_id", input.UserID)

		resp := s.config.Router.Route(ctx, scope, rag.QueryRequest{Query: input.Query, UserID: input.UserID})
		if !resp.Success {
			text := resp.Error
			if resp.Details != "" {
				text = fmt.Sprintf("%s: %s", resp.Error, resp.Details)
			}
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, QueryOutput{Error: text, Sources: []rag.Source{}}, nil
		}

		output := QueryOutput{
			Success:  true,
			Answer:   resp.Answer,
			Grounded: resp.Grounded,
			Sources:  resp.Sources,
		}
		if output.Sources == nil {
			output.Sources = []rag.Source{}
		}
		if resp.MatchCount != nil {
			output.MatchCount = *resp.MatchCount
		}

		// Structured output is mirrored as JSON text for clients that only
		// read content blocks.
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			return nil, QueryOutput{}, fmt.Errorf("encoding query output: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
		}, output, nil
	}
}

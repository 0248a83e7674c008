// Package rag answers natural-language questions over the indexed insurance
// records: the query is embedded, nearest neighbors are retrieved from the
// scope's collections, and a language model answers from their snippets.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/insurag/pkg/embeddings"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/llm"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/vector"
)

// Stage names one step of answering a query.
type Stage string

const (
	StageEmbedQuery           Stage = "EMBED_QUERY"
	StageSearchNeighbors      Stage = "SEARCH_NEIGHBORS"
	StageAnswerWithoutContext Stage = "ANSWER_WITHOUT_CONTEXT"
	StageAssemblePrompt       Stage = "ASSEMBLE_PROMPT"
	StageGenerate             Stage = "GENERATE"
	StageFormatResponse       Stage = "FORMAT_RESPONSE"
)

// AnswererConfig wires an Answerer.
type AnswererConfig struct {
	Embedder  embeddings.Embedder
	Vectors   vector.Driver
	Generator llm.Generator
	Options   Options
	Logger    *slog.Logger
}

// Answerer runs the retrieval-augmented answer flow. It holds no
// per-request state and is safe for concurrent use.
type Answerer struct {
	embedder  embeddings.Embedder
	vectors   vector.Driver
	generator llm.Generator
	opts      Options
	logger    *slog.Logger
}

// NewAnswerer validates cfg and applies option defaults.
func NewAnswerer(cfg AnswererConfig) (*Answerer, error) {
	if cfg.Embedder == nil || cfg.Vectors == nil || cfg.Generator == nil {
		return nil, errors.New("answerer requires an embedder, vector driver and generator")
	}
	opts, err := cfg.Options.withDefaults()
	if err != nil {
		return nil, err
	}
	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}
	return &Answerer{
		embedder:  cfg.Embedder,
		vectors:   cfg.Vectors,
		generator: cfg.Generator,
		opts:      opts,
		logger:    l,
	}, nil
}

// Options returns the effective options.
func (a *Answerer) Options() Options {
	return a.opts
}

// answerRun carries one request through the stages.
type answerRun struct {
	query     string
	scope     entity.Scope
	topK      int
	embedding []float32
	matches   []vector.QueryResult
	prompt    llm.Prompt
	sources   []Source
	answer    string
	grounded  bool
}

// Answer runs EMBED_QUERY, SEARCH_NEIGHBORS, then either
// ANSWER_WITHOUT_CONTEXT or ASSEMBLE_PROMPT and GENERATE, then
// FORMAT_RESPONSE. A non-positive topK uses the configured default.
// Failures come back as unsuccessful responses, never as panics or errors.
func (a *Answerer) Answer(ctx context.Context, query string, scope entity.Scope, topK int) QueryResponse {
	if topK <= 0 {
		topK = a.opts.TopK
	}
	run := &answerRun{query: query, scope: scope, topK: topK}
	log := a.logger.With("scope", scope)
	start := time.Now()

	stage := StageEmbedQuery
	for {
		log.Debug("answer stage", "stage", stage)

		var (
			next Stage
			fail *QueryResponse
		)
		switch stage {
		case StageEmbedQuery:
			next, fail = a.embedQuery(ctx, run)
		case StageSearchNeighbors:
			next, fail = a.searchNeighbors(ctx, run)
		case StageAnswerWithoutContext:
			next, fail = a.answerWithoutContext(ctx, run)
		case StageAssemblePrompt:
			run.prompt, run.sources = assemblePrompt(run.query, run.matches, a.opts.PromptBudget, a.opts.SnippetRunes)
			run.grounded = true
			next = StageGenerate
		case StageGenerate:
			next, fail = a.generate(ctx, run, run.prompt)
		case StageFormatResponse:
			resp := a.format(run)
			log.Info("query answered",
				"matches", len(run.matches),
				"sources", len(run.sources),
				"grounded", run.grounded,
				"duration", time.Since(start),
			)
			return resp
		}

		if fail != nil {
			log.Warn("query failed", "stage", stage, "error", fail.Error, "details", fail.Details)
			return *fail
		}
		stage = next
	}
}

func (a *Answerer) embedQuery(ctx context.Context, run *answerRun) (Stage, *QueryResponse) {
	ectx, cancel := context.WithTimeout(ctx, a.opts.EmbedTimeout)
	defer cancel()

	emb, err := a.embedder.Embed(ectx, run.query)
	if err == nil && len(emb) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		resp := Failure(ErrEmbeddingFailed, err.Error())
		return "", &resp
	}
	run.embedding = emb
	return StageSearchNeighbors, nil
}

func (a *Answerer) searchNeighbors(ctx context.Context, run *answerRun) (Stage, *QueryResponse) {
	sctx, cancel := context.WithTimeout(ctx, a.opts.SearchTimeout)
	defer cancel()

	results, err := a.vectors.Search(sctx, run.embedding, run.topK, run.scope.Collections()...)
	if err != nil {
		resp := Failure(ErrVectorSearchFailed, err.Error())
		return "", &resp
	}

	run.matches = make([]vector.QueryResult, 0, len(results))
	for _, r := range results {
		if r.Score >= a.opts.MinSimilarity {
			run.matches = append(run.matches, r)
		}
	}
	// Stores order results already; re-sorting keeps the tie-break
	// deterministic whatever the backend.
	run.matches = vector.SortResults(run.matches, run.topK)

	if len(run.matches) == 0 {
		return StageAnswerWithoutContext, nil
	}
	return StageAssemblePrompt, nil
}

func (a *Answerer) answerWithoutContext(ctx context.Context, run *answerRun) (Stage, *QueryResponse) {
	if a.opts.NoContextPolicy == PolicyDecline {
		run.answer = DeclineAnswer
		return StageFormatResponse, nil
	}
	return a.generate(ctx, run, ungroundedPrompt(run.query))
}

func (a *Answerer) generate(ctx context.Context, run *answerRun, p llm.Prompt) (Stage, *QueryResponse) {
	gctx, cancel := context.WithTimeout(ctx, a.opts.GenerateTimeout)
	defer cancel()

	text, err := a.generator.Generate(gctx, p)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("language model returned an empty answer")
	}
	if err != nil {
		resp := Failure(ErrGenerationFailed, err.Error())
		return "", &resp
	}
	run.answer = strings.TrimSpace(text)
	return StageFormatResponse, nil
}

func (a *Answerer) format(run *answerRun) QueryResponse {
	count := len(run.matches)
	sources := run.sources
	if sources == nil {
		sources = []Source{}
	}
	return QueryResponse{
		Success:    true,
		Answer:     run.answer,
		Sources:    sources,
		MatchCount: &count,
		Grounded:   run.grounded,
		Scope:      run.scope,
	}
}

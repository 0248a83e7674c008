package rag

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/llm"
	"github.com/papercomputeco/insurag/pkg/vector"
)

const groundedSystemPrompt = `You are an assistant for an insurance company's staff.
Answer the question using only the records provided. Refer to records by their bracketed number.
If the records do not contain the answer, say so plainly. Be concise.`

const ungroundedSystemPrompt = `You are an assistant for an insurance company's staff.
No company records matched this question. Answer from general insurance knowledge,
and state that the answer is not based on company records. Be concise.`

// assemblePrompt renders the question plus the snippets of neighbors in
// descending similarity order. Each snippet is capped at snippetRunes; the
// records section is capped at budget runes by dropping the lowest-scoring
// snippets first. It returns the prompt and the sources actually included.
func assemblePrompt(query string, neighbors []vector.QueryResult, budget, snippetRunes int) (llm.Prompt, []Source) {
	var (
		records strings.Builder
		used    int
		sources = make([]Source, 0, len(neighbors))
	)

	for i, n := range neighbors {
		snippet := entity.TruncateRunes(n.Content, snippetRunes)
		block := fmt.Sprintf("[%d] %s/%s (similarity %.2f)\n%s\n\n", i+1, n.Collection, n.ID, n.Score, snippet)
		size := len([]rune(block))

		if used+size > budget {
			if i > 0 {
				break
			}
			// The best match alone is over budget: keep a truncated copy.
			block = entity.TruncateRunes(block, budget)
			size = budget
		}

		records.WriteString(block)
		used += size
		sources = append(sources, Source{
			EntityID:     n.ID,
			Collection:   n.Collection,
			Similarity:   n.Score,
			RelevantInfo: snippet,
		})
	}

	user := fmt.Sprintf("Question: %s\n\nRelevant records (most similar first):\n\n%s", query, strings.TrimRight(records.String(), "\n"))
	return llm.Prompt{System: groundedSystemPrompt, User: user}, sources
}

func ungroundedPrompt(query string) llm.Prompt {
	return llm.Prompt{System: ungroundedSystemPrompt, User: "Question: " + query}
}

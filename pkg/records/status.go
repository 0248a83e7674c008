package records

import (
	"context"
	"fmt"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/indexing"
	"github.com/papercomputeco/insurag/pkg/storage"
)

// CollectionStatus counts the index state of one collection.
type CollectionStatus struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`

	// Pending are records never attempted or changed since their last index.
	Pending int `json:"pending"`
}

// Status reports per-collection index counts.
func (s *Service) Status(ctx context.Context) (map[entity.Collection]CollectionStatus, error) {
	out := make(map[entity.Collection]CollectionStatus, len(entity.Collections()))
	for _, c := range entity.Collections() {
		list, err := s.store.List(ctx, c, storage.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", c, err)
		}
		st := CollectionStatus{Total: len(list)}
		for _, e := range list {
			switch {
			case e.Index.VectorIndexingError != nil:
				st.Failed++
			case indexing.NeedsIndex(e):
				st.Pending++
			default:
				st.Indexed++
			}
		}
		out[c] = st
	}
	return out, nil
}

// Summary tallies a bulk reindex.
type Summary struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s *Summary) add(r indexing.Result) {
	switch r.Outcome {
	case indexing.OutcomeIndexed:
		s.Indexed++
	case indexing.OutcomeFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// Total returns the number of records processed.
func (s Summary) Total() int {
	return s.Indexed + s.Failed + s.Skipped
}

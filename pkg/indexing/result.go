package indexing

import "github.com/papercomputeco/insurag/pkg/entity"

// Outcome classifies an indexing attempt.
type Outcome string

const (
	// OutcomeIndexed means the vector and status were written.
	OutcomeIndexed Outcome = "indexed"

	// OutcomeFailed means a failure status was recorded on the entity.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means nothing was written: the job was stale or the
	// entity is gone.
	OutcomeSkipped Outcome = "skipped"
)

// Skip reasons.
const (
	ReasonStale   = "stale"
	ReasonDeleted = "deleted"
)

// Result describes what an indexing attempt did. It is informational:
// the pipeline never reports failures as errors.
type Result struct {
	Collection entity.Collection `json:"collection"`
	ID         string            `json:"id"`
	Version    int64             `json:"version"`
	Outcome    Outcome           `json:"outcome"`

	// Reason explains failures and skips.
	Reason string `json:"reason,omitempty"`

	// Status is the index status written to the entity, if any.
	Status *entity.IndexStatus `json:"status,omitempty"`
}

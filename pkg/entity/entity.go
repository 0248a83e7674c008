// Package entity defines the insurance records indexed by insurag and the
// index status fields the indexing pipeline maintains on them.
package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved JSON keys. Attributes never carry these.
const (
	KeyID                  = "id"
	KeyCollection          = "collection"
	KeyVersion             = "version"
	KeyCreatedAt           = "createdAt"
	KeyUpdatedAt           = "updatedAt"
	KeyVectorIndexed       = "vectorIndexed"
	KeyVectorIndexedAt     = "vectorIndexedAt"
	KeyVectorIndexingError = "vectorIndexingError"
	KeyEmbeddingText       = "embeddingText"
)

var reservedKeys = map[string]struct{}{
	KeyID:                  {},
	KeyCollection:          {},
	KeyVersion:             {},
	KeyCreatedAt:           {},
	KeyUpdatedAt:           {},
	KeyVectorIndexed:       {},
	KeyVectorIndexedAt:     {},
	KeyVectorIndexingError: {},
	KeyEmbeddingText:       {},
}

// IndexStatus is the indexing state persisted on each entity. Only the
// indexing pipeline writes it.
type IndexStatus struct {
	VectorIndexed       bool       `json:"vectorIndexed"`
	VectorIndexedAt     *time.Time `json:"vectorIndexedAt"`
	VectorIndexingError *string    `json:"vectorIndexingError"`
	EmbeddingText       *string    `json:"embeddingText"`
}

// Succeeded returns the status recorded after a successful index write.
func Succeeded(text string, at time.Time) IndexStatus {
	at = at.UTC()
	return IndexStatus{
		VectorIndexed:   true,
		VectorIndexedAt: &at,
		EmbeddingText:   &text,
	}
}

// Failed returns the status recorded after a failed indexing attempt. The
// embedding text is kept when it was built before the failure.
func Failed(reason string, text *string) IndexStatus {
	return IndexStatus{
		VectorIndexed:       false,
		VectorIndexingError: &reason,
		EmbeddingText:       text,
	}
}

// Entity is one insurance record: a customer, policy, claim or document.
type Entity struct {
	ID         string
	Collection Collection
	Attributes map[string]any
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Index      IndexStatus
}

// Clone returns a deep enough copy for callers that mutate attributes.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Attributes = cloneMap(e.Attributes)
	return &c
}

// MarshalJSON flattens the attributes next to the record metadata.
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attributes)+len(reservedKeys))
	for k, v := range e.Attributes {
		out[k] = v
	}
	out[KeyID] = e.ID
	out[KeyCollection] = e.Collection
	out[KeyVersion] = e.Version
	out[KeyCreatedAt] = e.CreatedAt
	out[KeyUpdatedAt] = e.UpdatedAt
	out[KeyVectorIndexed] = e.Index.VectorIndexed
	out[KeyVectorIndexedAt] = e.Index.VectorIndexedAt
	out[KeyVectorIndexingError] = e.Index.VectorIndexingError
	out[KeyEmbeddingText] = e.Index.EmbeddingText
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decode := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		return nil
	}

	fields := []struct {
		key string
		dst any
	}{
		{KeyID, &e.ID},
		{KeyCollection, &e.Collection},
		{KeyVersion, &e.Version},
		{KeyCreatedAt, &e.CreatedAt},
		{KeyUpdatedAt, &e.UpdatedAt},
		{KeyVectorIndexed, &e.Index.VectorIndexed},
		{KeyVectorIndexedAt, &e.Index.VectorIndexedAt},
		{KeyVectorIndexingError, &e.Index.VectorIndexingError},
		{KeyEmbeddingText, &e.Index.EmbeddingText},
	}
	for _, f := range fields {
		if err := decode(f.key, f.dst); err != nil {
			return err
		}
	}

	e.Attributes = make(map[string]any, len(raw))
	for k, v := range raw {
		if _, ok := reservedKeys[k]; ok {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decoding %s: %w", k, err)
		}
		e.Attributes[k] = val
	}
	return nil
}

// SanitizeAttributes returns a copy of attrs without the reserved keys, so
// API clients cannot write record metadata or index status.
func SanitizeAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if _, ok := reservedKeys[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case map[string]any:
			out[k] = cloneMap(tv)
		case []any:
			cp := make([]any, len(tv))
			copy(cp, tv)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

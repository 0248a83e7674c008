package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/vector"
	"github.com/papercomputeco/insurag/pkg/vector/inmemory"
)

// MockVectorDriver is an in-memory vector driver with injectable failures
// and call counters.
type MockVectorDriver struct {
	*inmemory.Driver

	// UpsertErr and SearchErr, when set, fail the corresponding call.
	UpsertErr error
	SearchErr error

	mu         sync.Mutex
	upserts    int
	searches   int
	lastScopes []entity.Collection
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{Driver: inmemory.NewDriver()}
}

func (m *MockVectorDriver) Upsert(ctx context.Context, docs []vector.Document) error {
	m.mu.Lock()
	m.upserts++
	err := m.UpsertErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Driver.Upsert(ctx, docs)
}

func (m *MockVectorDriver) Search(ctx context.Context, embedding []float32, topK int, collections ...entity.Collection) ([]vector.QueryResult, error) {
	m.mu.Lock()
	m.searches++
	m.lastScopes = append([]entity.Collection(nil), collections...)
	err := m.SearchErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.Driver.Search(ctx, embedding, topK, collections...)
}

// Upserts returns the number of Upsert invocations.
func (m *MockVectorDriver) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// Searches returns the number of Search invocations.
func (m *MockVectorDriver) Searches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

// LastCollections returns the collections passed to the latest Search.
func (m *MockVectorDriver) LastCollections() []entity.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastScopes
}

package rag

import (
	"context"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	testutils "github.com/papercomputeco/insurag/pkg/utils/test"
	"github.com/papercomputeco/insurag/pkg/vector"
)

type ragFixture struct {
	embedder  *testutils.MockEmbedder
	vectors   *testutils.MockVectorDriver
	generator *testutils.MockGenerator
}

func newRAGFixture() *ragFixture {
	return &ragFixture{
		embedder:  testutils.NewMockEmbedder(),
		vectors:   testutils.NewMockVectorDriver(),
		generator: testutils.NewMockGenerator(),
	}
}

func (f *ragFixture) answerer(opts Options) *Answerer {
	a, err := NewAnswerer(AnswererConfig{
		Embedder:  f.embedder,
		Vectors:   f.vectors,
		Generator: f.generator,
		Options:   opts,
	})
	Expect(err).NotTo(HaveOccurred())
	return a
}

func (f *ragFixture) router(opts Options) *Router {
	r, err := NewRouter(RouterConfig{Answerer: f.answerer(opts)})
	Expect(err).NotTo(HaveOccurred())
	return r
}

func (f *ragFixture) put(c entity.Collection, id, content string, emb []float32) {
	Expect(f.vectors.Driver.Upsert(context.Background(), []vector.Document{{
		Collection: c,
		ID:         id,
		Version:    1,
		Content:    content,
		Embedding:  emb,
	}})).To(Succeed())
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/indexing"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/records"
	"github.com/papercomputeco/insurag/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/insurag/pkg/utils/test"
)

type apiFixture struct {
	store     *inmemory.Driver
	vectors   *testutils.MockVectorDriver
	embedder  *testutils.MockEmbedder
	generator *testutils.MockGenerator
	records   *records.Service
	router    *rag.Router
	checks    map[string]rag.HealthCheck
}

func newAPIFixture() *apiFixture {
	f := &apiFixture{
		store:     inmemory.NewDriver(),
		vectors:   testutils.NewMockVectorDriver(),
		embedder:  testutils.NewMockEmbedder(),
		generator: testutils.NewMockGenerator(),
		checks:    map[string]rag.HealthCheck{},
	}

	pipeline, err := indexing.NewPipeline(indexing.Config{
		Storage:  f.store,
		Vectors:  f.vectors,
		Embedder: f.embedder,
	})
	Expect(err).NotTo(HaveOccurred())

	f.records, err = records.New(records.Config{Storage: f.store, Indexer: pipeline})
	Expect(err).NotTo(HaveOccurred())

	answerer, err := rag.NewAnswerer(rag.AnswererConfig{
		Embedder:  f.embedder,
		Vectors:   f.vectors,
		Generator: f.generator,
	})
	Expect(err).NotTo(HaveOccurred())

	f.router, err = rag.NewRouter(rag.RouterConfig{Answerer: answerer, Checks: f.checks})
	Expect(err).NotTo(HaveOccurred())
	return f
}

func (f *apiFixture) server(config Config) *Server {
	s, err := NewServer(config, f.router, f.records, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return s
}

func (f *apiFixture) sweeper(q *jobRecorder) *indexing.Sweeper {
	return indexing.NewSweeper(indexing.SweeperConfig{Storage: f.store, Enqueuer: q})
}

// jobRecorder is an indexing.Enqueuer that keeps every job.
type jobRecorder struct {
	jobs []indexing.Job
}

func (q *jobRecorder) Enqueue(job indexing.Job) bool {
	q.jobs = append(q.jobs, job)
	return true
}

// failingSweeper fails every sweep.
type failingSweeper struct{}

func (failingSweeper) SweepOnce(context.Context) (indexing.SweepReport, error) {
	return indexing.SweepReport{}, errors.New("storage offline")
}

func do(s *Server, method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	Expect(err).NotTo(HaveOccurred())
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

func decode(data []byte) map[string]any {
	var out map[string]any
	Expect(json.Unmarshal(data, &out)).To(Succeed())
	return out
}

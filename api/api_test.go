package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/storage"
)

var johnDoe = map[string]any{
	"id":        "cust-001",
	"firstName": "John",
	"lastName":  "Doe",
	"address":   map[string]any{"city": "Lusaka"},
}

var _ = Describe("NewServer", func() {
	var f *apiFixture

	BeforeEach(func() {
		f = newAPIFixture()
	})

	It("requires a router", func() {
		_, err := NewServer(Config{}, nil, f.records, logger.Nop())
		Expect(err).To(MatchError("query router is required"))
	})

	It("requires a records service", func() {
		_, err := NewServer(Config{}, f.router, nil, logger.Nop())
		Expect(err).To(MatchError("records service is required"))
	})

	It("requires a logger", func() {
		_, err := NewServer(Config{}, f.router, f.records, nil)
		Expect(err).To(MatchError("logger is required"))
	})
})

var _ = Describe("Health endpoints", func() {
	var (
		f      *apiFixture
		server *Server
	)

	BeforeEach(func() {
		f = newAPIFixture()
		server = f.server(Config{})
	})

	It("answers ping", func() {
		resp, body := do(server, http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	It("reports healthy when every check passes", func() {
		f.checks["vectors"] = func(context.Context) error { return nil }

		resp, body := do(server, http.MethodGet, "/health", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		out := decode(body)
		Expect(out["status"]).To(Equal(rag.StatusHealthy))
		Expect(out["service"]).To(Equal(rag.DefaultServiceName))
		Expect(out["timestamp"]).NotTo(BeEmpty())
	})

	It("returns 503 when a check fails", func() {
		f.checks["vectors"] = func(context.Context) error { return errors.New("down") }

		resp, body := do(server, http.MethodGet, "/health", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		Expect(decode(body)["status"]).To(Equal(rag.StatusUnhealthy))
	})
})

var _ = Describe("Query endpoints", func() {
	var (
		f      *apiFixture
		server *Server
	)

	BeforeEach(func() {
		f = newAPIFixture()
		server = f.server(Config{})

		resp, _ := do(server, http.MethodPost, "/v1/entities/customers", johnDoe)
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
	})

	DescribeTable("answers every scope with HTTP 200",
		func(path string, grounded bool, count int, countKey string) {
			resp, body := do(server, http.MethodPost, path, map[string]any{
				"query":  "Who lives in Lusaka?",
				"userId": "agent-7",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode(body)
			Expect(out["success"]).To(BeTrue())
			Expect(out["answer"]).To(Equal("mock answer"))
			Expect(out["grounded"]).To(Equal(grounded))
			Expect(out["matchCount"]).To(BeEquivalentTo(count))
			if countKey != "" {
				Expect(out[countKey]).To(BeEquivalentTo(count))
			}
		},
		Entry("askQuestion", "/v1/askQuestion", true, 1, ""),
		Entry("queryCustomerRAG", "/v1/queryCustomerRAG", true, 1, "similarCustomersCount"),
		Entry("queryPoliciesRAG", "/v1/queryPoliciesRAG", false, 0, "similarPoliciesCount"),
		Entry("queryClaimsRAG", "/v1/queryClaimsRAG", false, 0, "similarClaimsCount"),
		Entry("queryDocumentsRAG", "/v1/queryDocumentsRAG", false, 0, "similarDocumentsCount"),
	)

	It("cites the matched customer as a source", func() {
		_, body := do(server, http.MethodPost, "/v1/queryCustomerRAG", map[string]any{"query": "Who lives in Lusaka?"})

		out := decode(body)
		sources, ok := out["sources"].([]any)
		Expect(ok).To(BeTrue())
		Expect(sources).To(HaveLen(1))
		source := sources[0].(map[string]any)
		Expect(source["entityId"]).To(Equal("cust-001"))
		Expect(source["collection"]).To(Equal("customers"))
		Expect(source["relevantInfo"]).To(ContainSubstring("Lusaka"))
	})

	It("returns 400 when the body is not JSON", func() {
		resp, body := do(server, http.MethodPost, "/v1/askQuestion", "{not json")
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

		out := decode(body)
		Expect(out["success"]).To(BeFalse())
		Expect(out["error"]).To(Equal(ErrInvalidBody))
	})

	DescribeTable("rejects missing queries without calling providers",
		func(body any) {
			embedCalls := f.embedder.Calls()

			resp, data := do(server, http.MethodPost, "/v1/queryClaimsRAG", body)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode(data)
			Expect(out["success"]).To(BeFalse())
			Expect(out["error"]).To(Equal(rag.ErrQueryRequired))
			Expect(out).NotTo(HaveKey("answer"))
			Expect(f.embedder.Calls()).To(Equal(embedCalls))
			Expect(f.generator.Calls()).To(BeZero())
		},
		Entry("empty object", map[string]any{}),
		Entry("blank query", map[string]any{"query": "   "}),
		Entry("non-string query", map[string]any{"query": 42}),
		Entry("null body", "null"),
	)
})

var _ = Describe("Entity endpoints", func() {
	var (
		f      *apiFixture
		server *Server
	)

	BeforeEach(func() {
		f = newAPIFixture()
		server = f.server(Config{})

		resp, body := do(server, http.MethodPost, "/v1/entities/customers", johnDoe)
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		Expect(decode(body)["id"]).To(Equal("cust-001"))
	})

	It("indexes created records", func() {
		resp, body := do(server, http.MethodGet, "/v1/entities/customers/cust-001", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		out := decode(body)
		Expect(out["vectorIndexed"]).To(BeTrue())
		Expect(out["embeddingText"]).To(ContainSubstring("John"))
		Expect(out["version"]).To(BeEquivalentTo(1))
		Expect(f.vectors.Driver.Len()).To(Equal(1))
	})

	It("keeps each record in the collection it was posted to", func() {
		resp, _ := do(server, http.MethodPost, "/v1/entities/documents", map[string]any{"id": "doc-001", "title": "Policy wording"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		_, _ = do(server, http.MethodGet, "/v1/entities/policies", nil)

		customers, err := f.store.List(context.Background(), entity.Customers, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(customers).To(HaveLen(1))
		Expect(customers[0].Collection).To(Equal(entity.Customers))

		_, body := do(server, http.MethodGet, "/v1/entities/documents", nil)
		out := decode(body)
		Expect(out["count"]).To(BeEquivalentTo(1))
		Expect(out["entities"].([]any)[0].(map[string]any)["collection"]).To(Equal("documents"))

		_, body = do(server, http.MethodPost, "/v1/queryCustomerRAG", map[string]any{"query": "Who lives in Lusaka?"})
		Expect(decode(body)["similarCustomersCount"]).To(BeEquivalentTo(1))
	})

	It("assigns an id when none is given", func() {
		resp, body := do(server, http.MethodPost, "/v1/entities/claims", map[string]any{"description": "Hail damage"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		Expect(decode(body)["id"]).NotTo(BeEmpty())
	})

	It("returns 409 for a duplicate id", func() {
		resp, _ := do(server, http.MethodPost, "/v1/entities/customers", johnDoe)
		Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
	})

	It("returns 400 for an unknown collection", func() {
		resp, body := do(server, http.MethodPost, "/v1/entities/vehicles", map[string]any{"make": "Toyota"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		Expect(decode(body)["error"]).To(ContainSubstring("vehicles"))
	})

	It("returns 400 for a body that is not an object", func() {
		resp, _ := do(server, http.MethodPost, "/v1/entities/customers", "[1,2]")
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("returns 404 for a missing record", func() {
		resp, _ := do(server, http.MethodGet, "/v1/entities/customers/nobody", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})

	It("merges updates and bumps the version", func() {
		resp, body := do(server, http.MethodPut, "/v1/entities/customers/cust-001", map[string]any{"occupation": "Nurse"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		out := decode(body)
		Expect(out["version"]).To(BeEquivalentTo(2))
		Expect(out["firstName"]).To(Equal("John"))
		Expect(out["occupation"]).To(Equal("Nurse"))

		_, body = do(server, http.MethodGet, "/v1/entities/customers/cust-001", nil)
		Expect(decode(body)["embeddingText"]).To(ContainSubstring("Occupation: Nurse"))
	})

	It("deletes the record and its vector", func() {
		resp, _ := do(server, http.MethodDelete, "/v1/entities/customers/cust-001", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))
		Expect(f.vectors.Driver.Len()).To(BeZero())

		resp, _ = do(server, http.MethodGet, "/v1/entities/customers/cust-001", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})

	It("reindexes a record on request", func() {
		resp, body := do(server, http.MethodPost, "/v1/entities/customers/cust-001/reindex", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		out := decode(body)
		Expect(out["outcome"]).To(Equal("indexed"))
		Expect(out["id"]).To(Equal("cust-001"))
	})

	Describe("listing", func() {
		BeforeEach(func() {
			for _, c := range []map[string]any{
				{"id": "cust-002", "firstName": "Mary", "address": map[string]any{"city": "Ndola"}},
				{"id": "cust-003", "firstName": "Peter", "address": map[string]any{"city": "Lusaka"}},
			} {
				resp, _ := do(server, http.MethodPost, "/v1/entities/customers", c)
				Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			}
		})

		It("lists in id order", func() {
			resp, body := do(server, http.MethodGet, "/v1/entities/customers", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode(body)
			Expect(out["count"]).To(BeEquivalentTo(3))
			ids := []any{}
			for _, e := range out["entities"].([]any) {
				ids = append(ids, e.(map[string]any)["id"])
			}
			Expect(ids).To(Equal([]any{"cust-001", "cust-002", "cust-003"}))
		})

		It("filters on nested attributes", func() {
			_, body := do(server, http.MethodGet, "/v1/entities/customers?filter.address.city=Lusaka", nil)
			Expect(decode(body)["count"]).To(BeEquivalentTo(2))
		})

		It("filters on index state", func() {
			_, body := do(server, http.MethodGet, "/v1/entities/customers?indexed=false", nil)
			Expect(decode(body)["count"]).To(BeEquivalentTo(0))
		})

		It("paginates", func() {
			_, body := do(server, http.MethodGet, "/v1/entities/customers?limit=1&offset=1", nil)
			out := decode(body)
			Expect(out["count"]).To(BeEquivalentTo(1))
			Expect(out["entities"].([]any)[0].(map[string]any)["id"]).To(Equal("cust-002"))
		})

		It("rejects a bad limit", func() {
			resp, _ := do(server, http.MethodGet, "/v1/entities/customers?limit=-1", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns an empty list for an empty collection", func() {
			_, body := do(server, http.MethodGet, "/v1/entities/documents", nil)
			out := decode(body)
			Expect(out["count"]).To(BeEquivalentTo(0))
			Expect(out["entities"]).To(BeEmpty())
		})
	})
})

var _ = Describe("Index endpoints", func() {
	var f *apiFixture

	BeforeEach(func() {
		f = newAPIFixture()
	})

	It("reports per collection index counts", func() {
		server := f.server(Config{})
		do(server, http.MethodPost, "/v1/entities/customers", johnDoe)
		_, err := f.store.Create(context.Background(), &entity.Entity{
			ID:         "claim-001",
			Collection: entity.Claims,
			Attributes: map[string]any{"description": "Burst pipe"},
		})
		Expect(err).NotTo(HaveOccurred())

		resp, body := do(server, http.MethodGet, "/v1/index/status", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		out := decode(body)
		Expect(out["customers"]).To(HaveKeyWithValue("indexed", BeEquivalentTo(1)))
		Expect(out["claims"]).To(HaveKeyWithValue("pending", BeEquivalentTo(1)))
		Expect(out["policies"]).To(HaveKeyWithValue("total", BeEquivalentTo(0)))
	})

	It("returns 503 for a sweep without a sweeper", func() {
		server := f.server(Config{})
		resp, _ := do(server, http.MethodPost, "/v1/index/sweep", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
	})

	It("sweeps records that need indexing", func() {
		queue := &jobRecorder{}
		server := f.server(Config{Sweeper: f.sweeper(queue)})
		_, err := f.store.Create(context.Background(), &entity.Entity{
			ID:         "pol-001",
			Collection: entity.Policies,
			Attributes: map[string]any{"policyNumber": "P-1"},
		})
		Expect(err).NotTo(HaveOccurred())

		resp, body := do(server, http.MethodPost, "/v1/index/sweep", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode(body)["enqueued"]).To(HaveKeyWithValue("policies", BeEquivalentTo(1)))
		Expect(queue.jobs).To(HaveLen(1))
		Expect(queue.jobs[0].Entity.ID).To(Equal("pol-001"))
	})

	It("returns 500 when the sweep fails", func() {
		server := f.server(Config{Sweeper: failingSweeper{}})
		resp, body := do(server, http.MethodPost, "/v1/index/sweep", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		Expect(decode(body)["error"]).To(Equal("storage offline"))
	})
})

var _ = Describe("MCP mount", func() {
	var f *apiFixture

	BeforeEach(func() {
		f = newAPIFixture()
	})

	It("forwards /mcp to the MCP handler", func() {
		mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(r.Method))
		})
		server := f.server(Config{MCP: mcpHandler})

		resp, body := do(server, http.MethodPost, "/mcp", map[string]any{"jsonrpc": "2.0"})
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		Expect(string(body)).To(Equal(http.MethodPost))
	})

	It("is not mounted without a handler", func() {
		server := f.server(Config{})
		resp, _ := do(server, http.MethodPost, "/mcp", map[string]any{})
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})
})

var _ = Describe("Query timeout", func() {
	It("fails a query that outlives the request budget", func() {
		f := newAPIFixture()
		f.generator.Delay = 5 * time.Second
		server := f.server(Config{QueryTimeout: 50 * time.Millisecond})

		resp, _ := do(server, http.MethodPost, "/v1/entities/customers", johnDoe)
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

		start := time.Now()
		resp, body := do(server, http.MethodPost, "/v1/queryCustomerRAG", map[string]any{"query": "Who lives in Lusaka?"})
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode(body)["success"]).To(BeFalse())
	})

	It("defaults the budget", func() {
		f := newAPIFixture()
		Expect(f.server(Config{}).config.QueryTimeout).To(Equal(DefaultQueryTimeout))
	})
})

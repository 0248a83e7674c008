package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/api/mcp"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/vector"
	testutils "github.com/papercomputeco/insurag/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var (
		router    *rag.Router
		embedder  *testutils.MockEmbedder
		vectors   *testutils.MockVectorDriver
		generator *testutils.MockGenerator
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		vectors = testutils.NewMockVectorDriver()
		generator = testutils.NewMockGenerator()

		answerer, err := rag.NewAnswerer(rag.AnswererConfig{
			Embedder:  embedder,
			Vectors:   vectors,
			Generator: generator,
		})
		Expect(err).NotTo(HaveOccurred())
		router, err = rag.NewRouter(rag.RouterConfig{Answerer: answerer})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the router is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("query router is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Router: router})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("builds an empty server in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools over streamable HTTP", func() {
		var (
			ctx     context.Context
			session *sdkmcp.ClientSession
		)

		BeforeEach(func() {
			ctx = context.Background()

			server, err := mcp.NewServer(mcp.Config{Router: router, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			httpServer := httptest.NewServer(server.Handler())
			DeferCleanup(httpServer.Close)

			client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
			session, err = client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: httpServer.URL}, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Close)
		})

		It("lists one tool per query operation", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("askQuestion", "queryCustomerRAG", "queryPoliciesRAG", "queryClaimsRAG", "queryDocumentsRAG"))
		})

		It("answers grounded on the scoped collection", func() {
			embedder.Embeddings["who lives in Lusaka?"] = []float32{1, 0}
			Expect(vectors.Driver.Upsert(ctx, []vector.Document{
				{Collection: entity.Customers, ID: "cust-1", Version: 1, Content: "Name: John Doe | City: Lusaka", Embedding: []float32{1, 0}},
				{Collection: entity.Claims, ID: "cust-1", Version: 1, Content: "Description: hail", Embedding: []float32{1, 0}},
			})).To(Succeed())

			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "queryCustomerRAG",
				Arguments: map[string]any{"query": "who lives in Lusaka?"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(res.Content).To(HaveLen(1))

			var out mcp.QueryOutput
			Expect(json.Unmarshal([]byte(res.Content[0].(*sdkmcp.TextContent).Text), &out)).To(Succeed())
			Expect(out.Success).To(BeTrue())
			Expect(out.Answer).To(Equal("mock answer"))
			Expect(out.MatchCount).To(Equal(1))
			Expect(out.Sources).To(HaveLen(1))
			Expect(out.Sources[0].Collection).To(Equal(entity.Customers))
		})

		It("reports validation failures as tool errors", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "queryClaimsRAG",
				Arguments: map[string]any{"query": "  "},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(res.Content[0].(*sdkmcp.TextContent).Text).To(ContainSubstring(rag.ErrQueryRequired))
			Expect(embedder.Calls()).To(Equal(0))

			var out mcp.QueryOutput
			raw, err := json.Marshal(res.StructuredContent)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(raw, &out)).To(Succeed())
			Expect(out.Success).To(BeFalse())
			Expect(out.Error).To(ContainSubstring(rag.ErrQueryRequired))
			Expect(out.Sources).To(BeEmpty())
		})

		It("returns an empty source list when nothing matches", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "queryPoliciesRAG",
				Arguments: map[string]any{"query": "which policies cover hail?"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out mcp.QueryOutput
			Expect(json.Unmarshal([]byte(res.Content[0].(*sdkmcp.TextContent).Text), &out)).To(Succeed())
			Expect(out.Success).To(BeTrue())
			Expect(out.Grounded).To(BeFalse())
			Expect(out.Sources).NotTo(BeNil())
			Expect(out.Sources).To(BeEmpty())
		})
	})
})

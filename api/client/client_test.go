package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/api/client"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/rag"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		mux      *http.ServeMux
		requests []recorded
		c        *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		mux = http.NewServeMux()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recorded{method: r.Method, path: r.URL.Path}
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				_ = json.Unmarshal(data, &rec.body)
			}
			requests = append(requests, rec)
			mux.ServeHTTP(w, r)
		}))
		DeferCleanup(server.Close)

		var err error
		c, err = client.New(server.URL + "/")
		Expect(err).NotTo(HaveOccurred())
	})

	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}

	Describe("New", func() {
		It("rejects targets without a scheme and host", func() {
			_, err := client.New("localhost")
			Expect(err).To(MatchError(ContainSubstring("invalid API target URL")))
		})
	})

	Describe("Ask", func() {
		It("posts to the entrypoint of the scope", func() {
			mux.HandleFunc("/v1/queryClaimsRAG", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"success":true,"answer":"Two claims.","grounded":true,"sources":[],"matchCount":2,"similarClaimsCount":2}`)
			})

			resp, err := c.Ask(ctx, entity.ScopeClaims, rag.QueryRequest{Query: "hail claims?", UserID: "u1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Answer).To(Equal("Two claims."))
			Expect(*resp.MatchCount).To(Equal(2))
			Expect(resp.Scope).To(Equal(entity.ScopeClaims))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].method).To(Equal(http.MethodPost))
			Expect(requests[0].body).To(HaveKeyWithValue("query", "hail claims?"))
			Expect(requests[0].body).To(HaveKeyWithValue("userId", "u1"))
		})

		It("returns failed answers without an error", func() {
			mux.HandleFunc("/v1/askQuestion", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"success":false,"error":"query required"}`)
			})

			resp, err := c.Ask(ctx, entity.ScopeGeneral, rag.QueryRequest{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Error).To(Equal(rag.ErrQueryRequired))
		})

		It("rejects unknown scopes locally", func() {
			_, err := c.Ask(ctx, entity.Scope("vehicles"), rag.QueryRequest{Query: "q"})
			Expect(err).To(MatchError(entity.ErrUnknownScope))
			Expect(requests).To(BeEmpty())
		})
	})

	Describe("Health", func() {
		It("decodes an unhealthy status", func() {
			mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusServiceUnavailable, `{"status":"unhealthy","service":"insurag","timestamp":"2026-01-02T03:04:05Z"}`)
			})

			h, err := c.Health(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Healthy()).To(BeFalse())
			Expect(h.Service).To(Equal("insurag"))
		})
	})

	Describe("index operations", func() {
		It("reads index status", func() {
			mux.HandleFunc("/v1/index/status", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"customers":{"total":3,"indexed":2,"failed":0,"pending":1}}`)
			})

			status, err := c.IndexStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status[entity.Customers].Total).To(Equal(3))
			Expect(status[entity.Customers].Pending).To(Equal(1))
		})

		It("surfaces error bodies", func() {
			mux.HandleFunc("/v1/index/sweep", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusServiceUnavailable, `{"error":"index sweeper is not configured"}`)
			})

			_, err := c.Sweep(ctx)
			Expect(err).To(MatchError(ContainSubstring("index sweeper is not configured")))
		})

		It("reindexes one record", func() {
			mux.HandleFunc("/v1/entities/policies/pol-1/reindex", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"collection":"policies","id":"pol-1","version":3,"outcome":"indexed"}`)
			})

			res, err := c.Reindex(ctx, entity.Policies, "pol-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Version).To(BeEquivalentTo(3))
			Expect(string(res.Outcome)).To(Equal("indexed"))
		})
	})
})

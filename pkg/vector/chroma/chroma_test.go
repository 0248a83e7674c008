package chroma_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	insuraglogger "github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/vector"
	"github.com/papercomputeco/insurag/pkg/vector/chroma"
	"github.com/papercomputeco/insurag/pkg/vector/vectortest"
)

var _ = Describe("Driver", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = insuraglogger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			// Each retry cycle sends a GET for the first collection and
			// then a POST to create it. Fail the first two cycles.
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempt := attempts.Add(1)
				if attempt <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{
					"id":   "test-collection-id",
					"name": "insurag_customers",
				})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("should return an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(vector.ErrConnection))
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})

		It("creates one cosine collection per entity collection", func() {
			fake := newFakeChroma()
			server := httptest.NewServer(fake)
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, CollectionPrefix: "test"}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()

			Expect(fake.collections).To(HaveKey("id-test_customers"))
			Expect(fake.collections).To(HaveKey("id-test_documents"))
			Expect(fake.spaces["id-test_claims"]).To(Equal("cosine"))
		})
	})

	Describe("conformance", func() {
		var server *httptest.Server

		AfterEach(func() {
			server.Close()
		})

		vectortest.DescribeDriver(func() vector.Driver {
			server = httptest.NewServer(newFakeChroma())
			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
			return driver
		})
	})
})

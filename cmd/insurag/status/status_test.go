package statuscmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	statuscmder "github.com/papercomputeco/insurag/cmd/insurag/status"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/rag"
	"github.com/papercomputeco/insurag/pkg/records"
)

var _ = Describe("status", func() {
	var (
		healthy bool
		server  *httptest.Server
	)

	BeforeEach(func() {
		healthy = true

		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			h := rag.HealthStatus{Status: rag.StatusHealthy, Service: "insurag", Timestamp: time.Now()}
			code := http.StatusOK
			if !healthy {
				h.Status = rag.StatusUnhealthy
				code = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(h)
		})
		mux.HandleFunc("/v1/index/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[entity.Collection]records.CollectionStatus{
				entity.Customers: {Total: 3, Indexed: 2, Pending: 1},
				entity.Claims:    {Total: 4, Indexed: 3, Failed: 1},
			})
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	execute := func(args ...string) (string, error) {
		root := &cobra.Command{Use: "insurag", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
		root.AddCommand(statuscmder.NewStatusCmd())

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append([]string{"status"}, args...))
		err := root.Execute()
		return out.String(), err
	}

	It("prints health and per-collection counts", func() {
		out, err := execute("--api-target", server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("insurag"))
		Expect(out).To(ContainSubstring(rag.StatusHealthy))
		Expect(out).To(ContainSubstring("COLLECTION"))
		Expect(out).To(MatchRegexp(`customers\s*│\s*3\s*│\s*2\s*│\s*0\s*│\s*1`))
		Expect(out).To(MatchRegexp(`claims\s*│\s*4\s*│\s*3\s*│\s*1\s*│\s*0`))
		Expect(out).To(MatchRegexp(`policies\s*│\s*0`))
	})

	It("still reports an unhealthy server", func() {
		healthy = false
		out, err := execute("--api-target", server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(rag.StatusUnhealthy))
	})

	It("fails when the server is unreachable", func() {
		server.Close()
		_, err := execute("--api-target", server.URL)
		Expect(err).To(MatchError(ContainSubstring("checking health")))
	})
})

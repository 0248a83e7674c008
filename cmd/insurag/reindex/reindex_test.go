package reindexcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	reindexcmder "github.com/papercomputeco/insurag/cmd/insurag/reindex"
	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/indexing"
)

var _ = Describe("reindex", func() {
	var (
		configDir string
		dbPath    string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		dbPath = filepath.Join(configDir, "records.sqlite")

		cfg, err := config.PresetConfig("offline")
		Expect(err).NotTo(HaveOccurred())
		cfg.Storage.Provider = "sqlite"
		cfg.Storage.SQLitePath = dbPath

		ctx := context.Background()
		s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir})
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Records.Create(ctx, entity.Claims, "C-1", map[string]any{"description": "Burst pipe in kitchen"})
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Records.Create(ctx, entity.Customers, "cust-1", map[string]any{"firstName": "Ana", "lastName": "Ruiz"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())
	})

	execute := func(args ...string) (string, error) {
		root := &cobra.Command{Use: "insurag", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", configDir, "")
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.AddCommand(reindexcmder.NewReindexCmd())

		base := []string{
			"reindex",
			"--progress=false",
			"--storage-provider", "sqlite",
			"--sqlite", dbPath,
			"--vector-store-provider", "inmemory",
			"--embedding-provider", "hashing",
			"--embedding-dimensions", "64",
		}

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append(base, args...))
		err := root.Execute()
		return out.String(), err
	}

	It("reindexes every collection", func() {
		out, err := execute()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Reindexed 2 records"))
		Expect(out).To(ContainSubstring("(0 failed, 0 skipped)"))
	})

	It("limits the run to one collection", func() {
		out, err := execute("claims")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Reindexed 1 records"))
	})

	It("reindexes a single record", func() {
		out, err := execute("customers", "cust-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("customers/cust-1"))
		Expect(out).To(ContainSubstring("indexed"))
	})

	It("reports a missing record", func() {
		_, err := execute("customers", "nobody")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown collection", func() {
		_, err := execute("vehicles")
		Expect(err).To(MatchError(entity.ErrUnknownCollection))
	})

	Describe("--sweep", func() {
		It("asks the server to sweep and prints the enqueued counts", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/v1/index/sweep", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(indexing.SweepReport{
					Scanned:  7,
					Enqueued: map[entity.Collection]int{entity.Claims: 2, entity.Policies: 1},
				})
			})
			server := httptest.NewServer(mux)
			DeferCleanup(server.Close)

			out, err := execute("--sweep", "--api-target", server.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Swept 7 records"))
			Expect(out).To(MatchRegexp(`claims\s+2 enqueued`))
			Expect(out).To(MatchRegexp(`policies\s+1 enqueued`))
		})

		It("reindexes one record through the server with --remote", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/v1/entities/claims/C-1/reindex", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(indexing.Result{
					Collection: entity.Claims,
					ID:         "C-1",
					Version:    2,
					Outcome:    indexing.OutcomeIndexed,
				})
			})
			server := httptest.NewServer(mux)
			DeferCleanup(server.Close)

			out, err := execute("claims", "C-1", "--remote", "--api-target", server.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("claims/C-1"))
			Expect(out).To(ContainSubstring("indexed"))
		})

		It("requires a collection and id with --remote", func() {
			_, err := execute("claims", "--remote")
			Expect(err).To(MatchError(ContainSubstring("--remote takes a collection and an id")))
		})

		It("does not accept arguments", func() {
			_, err := execute("--sweep", "claims")
			Expect(err).To(MatchError(ContainSubstring("does not take arguments")))
		})
	})
})

package stack_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/insurag/cmd/insurag/stack"
	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/rag"
)

var _ = Describe("Build", func() {
	var (
		ctx       context.Context
		cfg       *config.Config
		configDir string
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		cfg, err = config.PresetConfig("offline")
		Expect(err).NotTo(HaveOccurred())

		configDir, err = os.MkdirTemp("", "insurag-stack-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(configDir)
		})
	})

	It("indexes writes inline without background indexing", func() {
		s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		Expect(s.Pool).To(BeNil())
		Expect(s.Sweeper).To(BeNil())

		e, err := s.Records.Create(ctx, entity.Customers, "cust-1", map[string]any{"firstName": "John", "lastName": "Doe"})
		Expect(err).NotTo(HaveOccurred())

		stored, err := s.Records.Get(ctx, entity.Customers, e.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Index.VectorIndexed).To(BeTrue())
	})

	It("drains background indexing on close", func() {
		s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir, Background: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Pool).NotTo(BeNil())
		Expect(s.Sweeper).NotTo(BeNil())

		_, err = s.Records.Create(ctx, entity.Claims, "claim-1", map[string]any{"description": "Burst pipe"})
		Expect(err).NotTo(HaveOccurred())

		s.Pool.Close()
		stored, err := s.Storage.Get(ctx, entity.Claims, "claim-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Index.VectorIndexed).To(BeTrue())
		Expect(s.Close()).To(Succeed())
	})

	It("reports the record store in health checks", func() {
		s, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		Expect(s.Router.Health(ctx).Status).To(Equal(rag.StatusHealthy))
	})

	It("fails on an unknown vector store", func() {
		cfg.VectorStore.Provider = "faiss"

		_, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
	})

	It("fails on an invalid no-context policy", func() {
		cfg.RAG.NoContextPolicy = "shrug"

		_, err := stack.Build(ctx, cfg, stack.Options{ConfigDir: configDir})
		Expect(err).To(MatchError(ContainSubstring("no-context policy")))
	})
})

var _ = Describe("RAGOptions", func() {
	It("carries the rag config section", func() {
		opts := stack.RAGOptions(config.RAGConfig{
			TopK:            8,
			MinSimilarity:   0.7,
			PromptBudget:    2000,
			SnippetRunes:    300,
			NoContextPolicy: "decline",
		})
		Expect(opts.TopK).To(Equal(8))
		Expect(opts.MinSimilarity).To(BeNumerically("~", 0.7, 1e-6))
		Expect(opts.PromptBudget).To(Equal(2000))
		Expect(opts.SnippetRunes).To(Equal(300))
		Expect(opts.NoContextPolicy).To(Equal(rag.PolicyDecline))
	})
})

var _ = Describe("NewServiceLogger", func() {
	It("appends JSON records to the service log", func() {
		dir := GinkgoT().TempDir()
		cmd := &cobra.Command{Use: "serve"}
		cmd.Flags().String("config-dir", dir, "")
		cmd.Flags().Bool("debug", false, "")

		log, closer, err := stack.NewServiceLogger(cmd)
		Expect(err).NotTo(HaveOccurred())

		log.Info("indexing started", "collection", "claims")
		log.Debug("not written")
		Expect(closer.Close()).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, stack.LogFileName))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"indexing started"`))
		Expect(string(data)).To(ContainSubstring(`"collection":"claims"`))
		Expect(string(data)).To(ContainSubstring(`"service":"serve"`))
		Expect(string(data)).NotTo(ContainSubstring("not written"))
	})
})

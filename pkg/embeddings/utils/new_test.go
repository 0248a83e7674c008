package embeddingutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/embeddings"
	"github.com/papercomputeco/insurag/pkg/embeddings/hashing"
	"github.com/papercomputeco/insurag/pkg/embeddings/ollama"
	"github.com/papercomputeco/insurag/pkg/embeddings/openai"
	embeddingutils "github.com/papercomputeco/insurag/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	It("builds each provider", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "ollama"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))

		e, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "openai", APIKey: "sk"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&openai.Embedder{}))

		e, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "hashing", Dimensions: 64})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.(*hashing.Embedder).Dimensions()).To(Equal(64))
	})

	It("propagates provider construction errors", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "openai"})
		Expect(err).To(MatchError(openai.ErrMissingAPIKey))
	})

	It("wraps the embedder when a rate limit is set", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "hashing", RateLimit: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&embeddings.RateLimited{}))
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "word2vec"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})

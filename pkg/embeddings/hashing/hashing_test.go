package hashing_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/embeddings/hashing"
	"github.com/papercomputeco/insurag/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		e   *hashing.Embedder
		ctx context.Context
	)

	BeforeEach(func() {
		e = hashing.NewEmbedder(0)
		ctx = context.Background()
	})

	It("defaults the dimensions", func() {
		Expect(e.Dimensions()).To(Equal(hashing.DefaultDimensions))
		Expect(hashing.NewEmbedder(32).Dimensions()).To(Equal(32))
	})

	It("is deterministic", func() {
		a, err := e.Embed(ctx, "Description: rear bumper damage | Location: Austin")
		Expect(err).NotTo(HaveOccurred())
		b, err := e.Embed(ctx, "Description: rear bumper damage | Location: Austin")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("returns unit-length vectors", func() {
		v, err := e.Embed(ctx, "software engineer in Seattle")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(HaveLen(hashing.DefaultDimensions))

		var n float64
		for _, f := range v {
			n += float64(f) * float64(f)
		}
		Expect(math.Sqrt(n)).To(BeNumerically("~", 1.0, 1e-5))
	})

	It("scores overlapping texts above unrelated ones", func() {
		q, _ := e.Embed(ctx, "hail damage to the roof")
		near, _ := e.Embed(ctx, "Description: roof hail damage after storm")
		far, _ := e.Embed(ctx, "Name: Jane Doe | Occupation: nurse")

		Expect(vector.Cosine(q, near)).To(BeNumerically(">", vector.Cosine(q, far)))
	})

	It("fails on input with no terms", func() {
		_, err := e.Embed(ctx, "  the and of  ")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})

	It("honors a cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Embed(cctx, "roof")
		Expect(err).To(MatchError(context.Canceled))
	})

	Describe("Tokenize", func() {
		It("lowercases, keeps numbers and drops stopwords", func() {
			Expect(hashing.Tokenize("The 2019 Honda Civic, and its owner policy")).
				To(Equal([]string{"2019", "honda", "civic", "owner", "policy"}))
		})

		It("folds plurals and possessives", func() {
			Expect(hashing.Tokenize("engineers' claims, the owner's policies and glass")).
				To(Equal([]string{"engineer", "claim", "owner", "policy", "glass"}))
		})

		It("drops segment labels but keeps colons inside values", func() {
			Expect(hashing.Tokenize("Name: John Doe | Email domain: example.com | Content: Note: hail")).
				To(Equal([]string{"john", "doe", "example", "com", "note", "hail"}))
		})

		It("drops request verbs from queries", func() {
			Expect(hashing.Tokenize("find customers who are software engineers in Lusaka")).
				To(Equal([]string{"customer", "software", "engineer", "lusaka"}))
		})
	})
})

// Package vectortest holds the behaviour every vector.Driver must share.
// Embeddings used here have four dimensions.
package vectortest

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/vector"
)

// Dimensions is the embedding length DescribeDriver stores.
const Dimensions = 4

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and the driver is closed after it.
func DescribeDriver(newDriver func() vector.Driver) {
	var (
		driver vector.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	doc := func(c entity.Collection, id string, emb ...float32) vector.Document {
		return vector.Document{Collection: c, ID: id, Version: 1, Content: "content of " + id, Embedding: emb}
	}

	Describe("Upsert", func() {
		It("does nothing for empty input", func() {
			Expect(driver.Upsert(ctx, nil)).To(Succeed())
		})

		It("overwrites instead of appending", func() {
			Expect(driver.Upsert(ctx, []vector.Document{doc(entity.Customers, "c-1", 1, 0, 0, 0)})).To(Succeed())
			updated := doc(entity.Customers, "c-1", 0, 1, 0, 0)
			updated.Version = 2
			Expect(driver.Upsert(ctx, []vector.Document{updated})).To(Succeed())

			results, err := driver.Search(ctx, []float32{0, 1, 0, 0}, 10, entity.Customers)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("c-1"))
			Expect(results[0].Version).To(Equal(int64(2)))
			Expect(results[0].Score).To(BeNumerically("~", 1, 1e-4))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				doc(entity.Customers, "c-1", 1, 0, 0, 0),
				doc(entity.Customers, "c-2", 0.8, 0.6, 0, 0),
				doc(entity.Customers, "c-3", 0, 0, 1, 0),
				doc(entity.Claims, "c-1", 1, 0, 0, 0),
				doc(entity.Claims, "cl-2", 0.6, 0.8, 0, 0),
			})).To(Succeed())
		})

		It("ranks by descending similarity", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 10, entity.Customers)
			Expect(err).NotTo(HaveOccurred())
			Expect(resultIDs(results)).To(Equal([]string{"c-1", "c-2", "c-3"}))
			for i := 1; i < len(results); i++ {
				Expect(results[i].Score).To(BeNumerically("<=", results[i-1].Score))
			}
			Expect(results[1].Score).To(BeNumerically("~", 0.8, 1e-4))
			Expect(results[2].Score).To(BeNumerically("~", 0, 1e-4))
		})

		It("returns content with results", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 1, entity.Customers)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Content).To(Equal("content of c-1"))
			Expect(results[0].Collection).To(Equal(entity.Customers))
		})

		It("never returns other collections", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 10, entity.Claims)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Collection).To(Equal(entity.Claims))
			}
		})

		It("searches every collection when none is given", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			// equal scores: claims sorts before customers
			Expect(results[0].Collection).To(Equal(entity.Claims))
			Expect(results[1].Collection).To(Equal(entity.Customers))
		})

		It("breaks ties by id ascending", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				doc(entity.Policies, "p-b", 0, 0, 0, 1),
				doc(entity.Policies, "p-a", 0, 0, 0, 1),
				doc(entity.Policies, "p-c", 0, 0, 0, 1),
			})).To(Succeed())

			results, err := driver.Search(ctx, []float32{0, 0, 0, 1}, 3, entity.Policies)
			Expect(err).NotTo(HaveOccurred())
			Expect(resultIDs(results)).To(Equal([]string{"p-a", "p-b", "p-c"}))
		})

		It("limits results to topK", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 1, entity.Customers)
			Expect(err).NotTo(HaveOccurred())
			Expect(resultIDs(results)).To(Equal([]string{"c-1"}))
		})

		It("returns nothing for an empty collection", func() {
			results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 5, entity.Documents)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Get", func() {
		It("returns stored documents of one collection", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				doc(entity.Documents, "d-1", 0, 0, 1, 0),
				doc(entity.Claims, "d-1", 1, 0, 0, 0),
			})).To(Succeed())

			docs, err := driver.Get(ctx, entity.Documents, []string{"d-1", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Collection).To(Equal(entity.Documents))
			Expect(docs[0].Embedding).To(HaveLen(Dimensions))
			Expect(docs[0].Embedding[2]).To(BeNumerically("~", 1, 1e-4))
		})
	})

	Describe("Delete", func() {
		It("removes only the named collection's document", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				doc(entity.Customers, "x", 1, 0, 0, 0),
				doc(entity.Claims, "x", 1, 0, 0, 0),
			})).To(Succeed())

			Expect(driver.Delete(ctx, entity.Customers, []string{"x"})).To(Succeed())

			gone, err := driver.Get(ctx, entity.Customers, []string{"x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(gone).To(BeEmpty())

			kept, err := driver.Get(ctx, entity.Claims, []string{"x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(kept).To(HaveLen(1))
		})

		It("ignores missing ids", func() {
			Expect(driver.Delete(ctx, entity.Customers, []string{"nope"})).To(Succeed())
		})
	})

	It("tolerates concurrent upserts and searches", func() {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(2)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(driver.Upsert(ctx, []vector.Document{
					doc(entity.Claims, fmt.Sprintf("cl-%02d", i), 1, float32(i), 0, 0),
				})).To(Succeed())
			}()
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 3, entity.Claims)
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 100, entity.Claims)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(8))
	})
}

func resultIDs(results []vector.QueryResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

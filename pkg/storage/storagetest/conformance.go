// Package storagetest holds the behaviour every storage.Driver must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each test and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	create := func(c entity.Collection, id string, attrs map[string]any) *entity.Entity {
		e, err := driver.Create(ctx, &entity.Entity{ID: id, Collection: c, Attributes: attrs})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	Describe("Create and Get", func() {
		It("stores an entity at version 1 and unindexed", func() {
			created := create(entity.Customers, "c-1", map[string]any{"firstName": "John"})
			Expect(created.Version).To(Equal(int64(1)))
			Expect(created.CreatedAt).NotTo(BeZero())

			got, err := driver.Get(ctx, entity.Customers, "c-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Attributes).To(HaveKeyWithValue("firstName", "John"))
			Expect(got.Index.VectorIndexed).To(BeFalse())
			Expect(got.Index.VectorIndexedAt).To(BeNil())
			Expect(got.Index.EmbeddingText).To(BeNil())
		})

		It("assigns an id when none is given", func() {
			created := create(entity.Claims, "", map[string]any{"description": "hail"})
			Expect(created.ID).NotTo(BeEmpty())
		})

		It("ignores index status passed on create", func() {
			e, err := driver.Create(ctx, &entity.Entity{
				ID:         "c-2",
				Collection: entity.Customers,
				Index:      entity.Succeeded("spoofed", time.Now()),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Index.VectorIndexed).To(BeFalse())
		})

		It("rejects duplicate keys", func() {
			create(entity.Customers, "dup", nil)
			_, err := driver.Create(ctx, &entity.Entity{ID: "dup", Collection: entity.Customers})
			Expect(err).To(MatchError(storage.ErrAlreadyExists))
		})

		It("keeps collections isolated for colliding ids", func() {
			create(entity.Customers, "same", map[string]any{"firstName": "Ann"})
			create(entity.Claims, "same", map[string]any{"description": "theft"})

			got, err := driver.Get(ctx, entity.Claims, "same")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Attributes).To(HaveKeyWithValue("description", "theft"))
		})

		It("returns NotFoundError for missing entities", func() {
			_, err := driver.Get(ctx, entity.Policies, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("merges attributes and bumps the version", func() {
			create(entity.Policies, "p-1", map[string]any{"coverageType": "third party", "policyType": "auto"})

			updated, err := driver.Update(ctx, entity.Policies, "p-1", map[string]any{"coverageType": "comprehensive"})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Version).To(Equal(int64(2)))
			Expect(updated.Attributes).To(HaveKeyWithValue("coverageType", "comprehensive"))
			Expect(updated.Attributes).To(HaveKeyWithValue("policyType", "auto"))
		})

		It("returns NotFoundError for missing entities", func() {
			_, err := driver.Update(ctx, entity.Policies, "missing", map[string]any{"a": "b"})
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("assigns distinct versions to concurrent updates", func() {
			create(entity.Claims, "cl-1", nil)

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				versions = map[int64]bool{}
			)
			for i := range 4 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					e, err := driver.Update(ctx, entity.Claims, "cl-1", map[string]any{"n": fmt.Sprint(i)})
					Expect(err).NotTo(HaveOccurred())
					mu.Lock()
					versions[e.Version] = true
					mu.Unlock()
				}()
			}
			wg.Wait()

			Expect(versions).To(HaveLen(4))
			got, err := driver.Get(ctx, entity.Claims, "cl-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Version).To(Equal(int64(5)))
		})
	})

	Describe("SetIndexStatus", func() {
		It("writes the status without touching the version", func() {
			create(entity.Customers, "c-1", map[string]any{"firstName": "John"})
			at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

			err := driver.SetIndexStatus(ctx, entity.Customers, "c-1", entity.Succeeded("Name: John", at))
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, entity.Customers, "c-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Version).To(Equal(int64(1)))
			Expect(got.Index.VectorIndexed).To(BeTrue())
			Expect(got.Index.VectorIndexedAt.Equal(at)).To(BeTrue())
			Expect(*got.Index.EmbeddingText).To(Equal("Name: John"))
			Expect(got.Index.VectorIndexingError).To(BeNil())
		})

		It("records failures", func() {
			create(entity.Customers, "c-1", nil)
			Expect(driver.SetIndexStatus(ctx, entity.Customers, "c-1", entity.Failed("embedding failed", nil))).To(Succeed())

			got, err := driver.Get(ctx, entity.Customers, "c-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Index.VectorIndexed).To(BeFalse())
			Expect(*got.Index.VectorIndexingError).To(Equal("embedding failed"))
		})

		It("returns NotFoundError for missing entities", func() {
			err := driver.SetIndexStatus(ctx, entity.Customers, "missing", entity.IndexStatus{})
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			create(entity.Customers, "c-3", map[string]any{"city": "Lusaka"})
			create(entity.Customers, "c-1", map[string]any{"city": "Lusaka"})
			create(entity.Customers, "c-2", map[string]any{"address": map[string]any{"city": "Ndola"}})
			create(entity.Claims, "c-4", map[string]any{"city": "Lusaka"})
			Expect(driver.SetIndexStatus(ctx, entity.Customers, "c-2", entity.Succeeded("x", time.Now()))).To(Succeed())
		})

		It("lists a collection in id order", func() {
			found, err := driver.List(ctx, entity.Customers, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(found)).To(Equal([]string{"c-1", "c-2", "c-3"}))
		})

		It("filters by attribute path", func() {
			found, err := driver.List(ctx, entity.Customers, storage.ListOptions{
				Filter: map[string]string{"address.city": "Ndola"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(found)).To(Equal([]string{"c-2"}))
		})

		It("filters by index state", func() {
			pending := false
			found, err := driver.List(ctx, entity.Customers, storage.ListOptions{VectorIndexed: &pending})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(found)).To(Equal([]string{"c-1", "c-3"}))
		})

		It("paginates", func() {
			found, err := driver.List(ctx, entity.Customers, storage.ListOptions{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(found)).To(Equal([]string{"c-2"}))

			found, err = driver.List(ctx, entity.Customers, storage.ListOptions{
				Filter: map[string]string{"city": "Lusaka"},
				Offset: 1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(found)).To(Equal([]string{"c-3"}))
		})

		It("skips with an offset and no limit", func() {
			found, err := driver.List(ctx, entity.Customers, storage.ListOptions{Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(found)).To(Equal([]string{"c-2", "c-3"}))
		})
	})

	Describe("Delete", func() {
		It("removes the entity", func() {
			create(entity.Documents, "d-1", nil)
			Expect(driver.Delete(ctx, entity.Documents, "d-1")).To(Succeed())

			_, err := driver.Get(ctx, entity.Documents, "d-1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("returns NotFoundError for missing entities", func() {
			Expect(storage.IsNotFound(driver.Delete(ctx, entity.Documents, "missing"))).To(BeTrue())
		})
	})

	It("pings", func() {
		Expect(driver.Ping(ctx)).To(Succeed())
	})
}

func ids(es []*entity.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

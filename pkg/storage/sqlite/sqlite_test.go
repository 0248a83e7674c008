package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/storage"
	"github.com/papercomputeco/insurag/pkg/storage/sqlite"
	"github.com/papercomputeco/insurag/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		d, err := sqlite.NewDriver(context.Background(), filepath.Join(GinkgoT().TempDir(), "insurag.db"))
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("NewDriver", func() {
		It("creates the database file", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("works with an in-memory database", func() {
			ctx := context.Background()
			d, err := sqlite.NewDriver(ctx, ":memory:")
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = d.Create(ctx, &entity.Entity{ID: "c-1", Collection: entity.Customers})
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "reopen.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Create(ctx, &entity.Entity{ID: "p-1", Collection: entity.Policies, Attributes: map[string]any{"policyType": "auto"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			got, err := d.Get(ctx, entity.Policies, "p-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Attributes).To(HaveKeyWithValue("policyType", "auto"))
		})
	})
})

package sqlitevec_test

import (
	"context"
	"log/slog"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	insuraglogger "github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/vector"
	"github.com/papercomputeco/insurag/pkg/vector/sqlitevec"
	"github.com/papercomputeco/insurag/pkg/vector/vectortest"
)

var _ = Describe("Driver", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = insuraglogger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger)
			Expect(err).To(HaveOccurred())
		})

		It("should create a driver with an in-memory database", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())
		})
	})

	Describe("conformance", func() {
		vectortest.DescribeDriver(func() vector.Driver {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     filepath.Join(GinkgoT().TempDir(), "vectors.db"),
				Dimensions: vectortest.Dimensions,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			return driver
		})
	})

	Describe("ties", func() {
		It("breaks ties past the k-th neighbor by id", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()

			ctx := context.Background()
			for _, id := range []string{"claim-e", "claim-d", "claim-c", "claim-b", "claim-a"} {
				Expect(driver.Upsert(ctx, []vector.Document{
					{Collection: entity.Claims, ID: id, Version: 1, Content: "hail", Embedding: []float32{1, 0, 0, 0}},
				})).To(Succeed())
			}
			Expect(driver.Upsert(ctx, []vector.Document{
				{Collection: entity.Claims, ID: "claim-0", Version: 1, Content: "flood", Embedding: []float32{0, 1, 0, 0}},
			})).To(Succeed())

			found, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 2, entity.Claims)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(2))
			Expect(found[0].ID).To(Equal("claim-a"))
			Expect(found[1].ID).To(Equal("claim-b"))
		})
	})

	Describe("dimensions", func() {
		It("rejects embeddings of the wrong length", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()

			err = driver.Upsert(context.Background(), []vector.Document{
				{Collection: entity.Claims, ID: "x", Embedding: []float32{1, 2}},
			})
			Expect(err).To(MatchError(vector.ErrDimensions))

			_, err = driver.Search(context.Background(), []float32{1}, 3)
			Expect(err).To(MatchError(vector.ErrDimensions))
		})
	})
})

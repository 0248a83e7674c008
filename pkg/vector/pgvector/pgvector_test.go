package pgvector_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	insuraglogger "github.com/papercomputeco/insurag/pkg/logger"
	"github.com/papercomputeco/insurag/pkg/vector"
	"github.com/papercomputeco/insurag/pkg/vector/pgvector"
	"github.com/papercomputeco/insurag/pkg/vector/vectortest"
)

var _ = Describe("Driver", func() {
	It("requires a connection string", func() {
		_, err := pgvector.NewDriver(context.Background(), pgvector.Config{Dimensions: 4}, insuraglogger.Nop())
		Expect(err).To(MatchError(ContainSubstring("connection string is required")))
	})

	Describe("conformance", func() {
		vectortest.DescribeDriver(func() vector.Driver {
			dsn := os.Getenv("INSURAG_TEST_POSTGRES_DSN")
			if dsn == "" {
				Skip("INSURAG_TEST_POSTGRES_DSN not set, skipping pgvector tests")
			}
			ctx := context.Background()
			driver, err := pgvector.NewDriver(ctx, pgvector.Config{
				ConnString: dsn,
				Table:      "insurag_vectors_test",
				Dimensions: vectortest.Dimensions,
			}, insuraglogger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Truncate(ctx)).To(Succeed())
			return driver
		})
	})
})

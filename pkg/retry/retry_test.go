package retry_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/retry"
)

var errFlaky = errors.New("flaky")

var _ = Describe("Do", func() {
	opts := retry.Options{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}

	It("returns nil on first success", func() {
		calls := 0
		err := retry.Do(context.Background(), opts, func(context.Context) error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries until success", func() {
		calls := 0
		err := retry.Do(context.Background(), opts, func(context.Context) error {
			calls++
			if calls < 3 {
				return errFlaky
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("wraps the last error with the attempt count", func() {
		calls := 0
		err := retry.Do(context.Background(), opts, func(context.Context) error {
			calls++
			return errFlaky
		})
		Expect(err).To(MatchError(errFlaky))
		Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		Expect(calls).To(Equal(3))
	})

	It("stops on permanent errors", func() {
		calls := 0
		err := retry.Do(context.Background(), opts, func(context.Context) error {
			calls++
			return retry.Permanent(errFlaky)
		})
		Expect(err).To(Equal(errFlaky))
		Expect(calls).To(Equal(1))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retry.Do(ctx, retry.Options{MaxAttempts: 5, InitialWait: time.Hour}, func(context.Context) error {
			calls++
			cancel()
			return errFlaky
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(err).To(MatchError(errFlaky))
		Expect(calls).To(Equal(1))
	})

	It("reports each retry", func() {
		var seen []int
		o := opts
		o.OnRetry = func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) }
		_ = retry.Do(context.Background(), o, func(context.Context) error { return errFlaky })
		Expect(seen).To(Equal([]int{1, 2}))
	})
})

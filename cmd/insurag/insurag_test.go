package insuragcmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	insuragcmder "github.com/papercomputeco/insurag/cmd/insurag"
)

var _ = Describe("NewInsuragCmd", func() {
	It("registers every subcommand", func() {
		cmd := insuragcmder.NewInsuragCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "ask", "seed", "reindex", "status", "config", "auth", "version"))
	})

	It("has global debug, config-dir and log-format flags", func() {
		cmd := insuragcmder.NewInsuragCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("log-format").DefValue).To(Equal("auto"))
	})

	It("nests the standalone api server under serve", func() {
		cmd := insuragcmder.NewInsuragCmd()
		api, _, err := cmd.Find([]string{"serve", "api"})
		Expect(err).NotTo(HaveOccurred())
		Expect(api.Name()).To(Equal("api"))
		Expect(api.Flags().Lookup("listen")).NotTo(BeNil())
	})
})

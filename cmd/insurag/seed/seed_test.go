package seedcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	seedcmder "github.com/papercomputeco/insurag/cmd/insurag/seed"
)

var _ = Describe("seed", func() {
	var (
		configDir string
		dbPath    string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		dbPath = filepath.Join(configDir, "records.sqlite")
	})

	execute := func(args ...string) (string, error) {
		root := &cobra.Command{Use: "insurag", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", configDir, "")
		root.AddCommand(seedcmder.NewSeedCmd())

		base := []string{
			"seed",
			"--storage-provider", "sqlite",
			"--sqlite", dbPath,
			"--vector-store-provider", "inmemory",
			"--embedding-provider", "hashing",
			"--embedding-dimensions", "64",
		}

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append(base, args...))
		err := root.Execute()
		return out.String(), err
	}

	It("loads the demo records", func() {
		out, err := execute()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Seeded"))
		Expect(out).To(ContainSubstring("12"))
		Expect(out).To(ContainSubstring("(0 skipped)"))
		Expect(dbPath).To(BeAnExistingFile())
	})

	It("skips records that already exist when asked", func() {
		_, err := execute()
		Expect(err).NotTo(HaveOccurred())

		out, err := execute("--skip-existing")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("(12 skipped)"))
	})

	It("fails on the first conflict without --skip-existing", func() {
		_, err := execute()
		Expect(err).NotTo(HaveOccurred())

		_, err = execute()
		Expect(err).To(MatchError(ContainSubstring("seeding customers[0]")))
	})

	It("loads records from a fixture file", func() {
		path := filepath.Join(configDir, "records.yaml")
		Expect(os.WriteFile(path, []byte(`claims:
  - id: C-9
    description: Hail damage to roof
    status: open
`), 0o600)).To(Succeed())

		out, err := execute("--file", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("(0 skipped)"))
	})

	It("rejects a fixture with unknown collections", func() {
		path := filepath.Join(configDir, "bad.yaml")
		Expect(os.WriteFile(path, []byte("vehicles: []\n"), 0o600)).To(Succeed())

		_, err := execute("--file", path)
		Expect(err).To(MatchError(ContainSubstring("unknown collection")))
	})
})

package versioncmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/insurag/cmd/version"
	"github.com/papercomputeco/insurag/pkg/utils"
)

var _ = Describe("version", func() {
	It("prints the build metadata", func() {
		cmd := versioncmder.NewVersionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(nil)

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(utils.Version))
		Expect(out.String()).To(ContainSubstring(utils.Sha))
	})

	It("prints JSON with --json", func() {
		cmd := versioncmder.NewVersionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--json"})

		Expect(cmd.Execute()).To(Succeed())

		var info versioncmder.Info
		Expect(json.Unmarshal(out.Bytes(), &info)).To(Succeed())
		Expect(info.Version).To(Equal(utils.Version))
		Expect(info.Buildtime).To(Equal(utils.Buildtime))
	})
})

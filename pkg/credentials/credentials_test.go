package credentials_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("targets credentials.toml inside the override dir", func() {
		Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers).To(BeEmpty())
		})

		It("reads an existing file", func() {
			content := "version = 0\n\n[providers.openai]\napi_key = \"sk-test\"\n"
			Expect(os.WriteFile(mgr.GetTarget(), []byte(content), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers["openai"].APIKey).To(Equal("sk-test"))
		})

		It("rejects malformed TOML", func() {
			Expect(os.WriteFile(mgr.GetTarget(), []byte("not [valid"), 0o600)).To(Succeed())
			_, err := mgr.Load()
			Expect(err).To(MatchError(ContainSubstring("parsing credentials")))
		})
	})

	Describe("keys", func() {
		It("stores keys with restricted permissions", func() {
			Expect(mgr.SetKey("openai", "sk-1")).To(Succeed())

			info, err := os.Stat(mgr.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("stamps when a key was saved", func() {
			before := time.Now().UTC().Add(-time.Second)
			Expect(mgr.SetKey("openai", "sk-1")).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers["openai"].SavedAt).To(BeTemporally(">=", before))
		})

		It("loads files without a saved time", func() {
			content := "version = 0\n\n[providers.anthropic]\napi_key = \"sk-ant-old\"\n"
			Expect(os.WriteFile(mgr.GetTarget(), []byte(content), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers["anthropic"].SavedAt.IsZero()).To(BeTrue())
		})

		It("overwrites, lists and removes keys", func() {
			Expect(mgr.SetKey("openai", "sk-1")).To(Succeed())
			Expect(mgr.SetKey("openai", "sk-2")).To(Succeed())
			Expect(mgr.SetKey("anthropic", "sk-ant")).To(Succeed())

			key, err := mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-2"))

			providers, err := mgr.ListProviders()
			Expect(err).NotTo(HaveOccurred())
			Expect(providers).To(Equal([]string{"anthropic", "openai"}))

			Expect(mgr.RemoveKey("openai")).To(Succeed())
			key, err = mgr.GetKey("openai")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})

		It("refuses to save nil credentials", func() {
			Expect(mgr.Save(nil)).To(HaveOccurred())
		})
	})

	Describe("ResolveKey", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("ANTHROPIC_API_KEY", "env-key")
		})

		It("prefers the explicit key", func() {
			Expect(mgr.SetKey("anthropic", "stored-key")).To(Succeed())
			Expect(credentials.ResolveKey(mgr, "anthropic", "explicit")).To(Equal("explicit"))
		})

		It("uses the stored key before the environment", func() {
			Expect(mgr.SetKey("anthropic", "stored-key")).To(Succeed())
			Expect(credentials.ResolveKey(mgr, "anthropic", "")).To(Equal("stored-key"))
		})

		It("falls back to the environment", func() {
			Expect(credentials.ResolveKey(mgr, "anthropic", "")).To(Equal("env-key"))
			Expect(credentials.ResolveKey(nil, "anthropic", "")).To(Equal("env-key"))
		})

		It("returns nothing for keyless providers", func() {
			Expect(credentials.ResolveKey(mgr, "ollama", "")).To(BeEmpty())
		})
	})
})

var _ = Describe("ProviderKey", func() {
	DescribeTable("masks keys for listings",
		func(key, want string) {
			Expect(credentials.ProviderKey{APIKey: key}.Masked()).To(Equal(want))
		},
		Entry("openai key", "sk-proj-abcdefgh1234", "sk-…1234"),
		Entry("anthropic key", "sk-ant-api03-xyz9876", "sk-…9876"),
		Entry("no vendor prefix", "abcdefghijklmnop", "…mnop"),
		Entry("short key", "short", "•••••"),
	)
})

var _ = Describe("providers", func() {
	It("maps providers to environment variables", func() {
		Expect(credentials.EnvVarForProvider("openai")).To(Equal("OPENAI_API_KEY"))
		Expect(credentials.EnvVarForProvider("anthropic")).To(Equal("ANTHROPIC_API_KEY"))
		Expect(credentials.EnvVarForProvider("ollama")).To(BeEmpty())
	})

	It("knows which providers need keys", func() {
		Expect(credentials.SupportedProviders()).To(ConsistOf("openai", "anthropic"))
		Expect(credentials.IsSupportedProvider("openai")).To(BeTrue())
		Expect(credentials.IsSupportedProvider("hashing")).To(BeFalse())
	})
})

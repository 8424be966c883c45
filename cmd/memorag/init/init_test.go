package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/memorag/cmd/memorag/init"
	"github.com/papercomputeco/memorag/pkg/config"
)

func TestInitCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Init Command Suite")
}

var _ = Describe("NewInitCmd", func() {
	It("takes no arguments and has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())

		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates .memorag with a default config.toml", func() {
		Expect(run()).To(Succeed())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Query.Mode).To(Equal("memory-then-retrieval"))
		Expect(cfg.Retrieval.TopK).To(Equal(uint(3)))
		Expect(cfg.API.Listen).To(Equal(":8081"))
	})

	It("does not overwrite an existing config without a preset", func() {
		dir := filepath.Join(tmpDir, ".memorag")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[query]\nmode = \"memory-only\"\n"), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "chat.json"), []byte(`{"turns":[]}`), 0o600)).To(Succeed())

		Expect(run()).To(Succeed())

		Expect(loadConfig(tmpDir).Query.Mode).To(Equal("memory-only"))
		data, err := os.ReadFile(filepath.Join(dir, "chat.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"turns":[]}`))
	})

	It("writes a named preset and overwrites on re-init", func() {
		Expect(run("--preset", "openai")).To(Succeed())
		Expect(loadConfig(tmpDir).Generation.Provider).To(Equal("openai"))

		Expect(run("--preset", "anthropic")).To(Succeed())
		Expect(loadConfig(tmpDir).Generation.Provider).To(Equal("anthropic"))
	})

	It("rejects unknown preset names without creating the directory", func() {
		err := run("--preset", "invalid-provider")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown preset"))

		_, statErr := os.Stat(filepath.Join(tmpDir, ".memorag"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	Describe("--preset with a URL", func() {
		It("fetches and writes the remote config", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "version = 0\n\n[generation]\nprovider = \"gemini\"\nmodel = \"gemini-2.5-flash\"\n\n[retrieval]\ntop_k = 8\n")
			}))
			defer server.Close()

			Expect(run("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Generation.Provider).To(Equal("gemini"))
			Expect(cfg.Retrieval.TopK).To(Equal(uint(8)))
		})

		It("fails on a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			err := run("--preset", server.URL)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("HTTP 404"))
		})

		It("fails on invalid TOML", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			err := run("--preset", server.URL)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing"))
		})

		It("fails on an unreachable URL", func() {
			err := run("--preset", "http://127.0.0.1:1")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("fetching remote config"))
		})
	})
})

func loadConfig(baseDir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(baseDir, ".memorag", "config.toml"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	ExpectWithOffset(1, toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}

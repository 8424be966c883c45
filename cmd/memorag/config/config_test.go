package configcmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/memorag/cmd/memorag/config"
)

func TestConfigCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Command Suite")
}

var _ = Describe("NewConfigCmd", func() {
	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))

		var names []string
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		Expect(os.MkdirAll(filepath.Join(tmpDir, ".memorag"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("writes config.toml on set and reads the value back", func() {
		Expect(run("set", "generation.provider", "anthropic")).To(Succeed())

		_, err := os.Stat(filepath.Join(tmpDir, ".memorag", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		out.Reset()
		Expect(run("get", "generation.provider")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("anthropic"))
	})

	It("rejects unknown keys", func() {
		err := run("set", "proxy.provider", "x")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown config key"))

		Expect(run("get", "nope")).To(HaveOccurred())
	})

	It("rejects non-numeric values for numeric keys", func() {
		Expect(run("set", "retrieval.top_k", "many")).To(HaveOccurred())
	})

	It("requires exactly two arguments to set", func() {
		Expect(run("set", "query.mode")).To(HaveOccurred())
	})

	It("reports unset keys", func() {
		Expect(run("get", "remote.url")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("<not set>"))
	})

	It("lists every key with defaults applied", func() {
		Expect(run("list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`query.mode`))
		Expect(out.String()).To(ContainSubstring(`"memory-then-retrieval"`))
		Expect(out.String()).To(ContainSubstring("remote.url"))
		Expect(out.String()).To(ContainSubstring("[retrieval]"))
	})

	It("lists keys as JSON with unset values as null", func() {
		Expect(run("list", "--json")).To(Succeed())

		var values map[string]*string
		Expect(json.Unmarshal(out.Bytes(), &values)).To(Succeed())
		Expect(values).To(HaveKey("query.mode"))
		Expect(*values["query.mode"]).To(Equal("memory-then-retrieval"))
		Expect(values).To(HaveKeyWithValue("remote.url", BeNil()))
	})
})

package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	chdir := func(dir string) {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(origDir) })
	}

	Describe("Target", func() {
		It("creates the override directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .memorag dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, dotdir.DirName), 0o755)).To(Succeed())
			chdir(tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .memorag dir when it exists and no override is provided", func() {
			local := filepath.Join(tmpDir, dotdir.DirName)
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to the home .memorag dir", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdir(emptyDir)

			home := filepath.Join(tmpDir, "home")
			Expect(os.MkdirAll(filepath.Join(home, dotdir.DirName), 0o755)).To(Succeed())
			GinkgoT().Setenv("HOME", home)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, dotdir.DirName)))
		})

		It("returns empty string when no directory exists and no override is provided", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdir(emptyDir)
			GinkgoT().Setenv("HOME", emptyDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("Create", func() {
		It("creates a local directory", func() {
			chdir(tmpDir)

			dir, err := m.Create(true)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(filepath.Join(tmpDir, dotdir.DirName)))

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))
		})
	})

	Describe("ChatState", func() {
		It("returns nil when no transcript exists", func() {
			state, err := m.LoadChatState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("saves, loads and clears a transcript", func() {
			state := &dotdir.ChatState{
				MemoryDir:    "/data/state",
				CorpusDigest: "abc",
				Mode:         "memory-then-retrieval",
				Turns: []dotdir.ChatTurn{
					{Query: "who?", Answer: "Alice", Path: "retrieval"},
				},
			}
			Expect(m.SaveChatState(state, tmpDir)).To(Succeed())

			loaded, err := m.LoadChatState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.CorpusDigest).To(Equal("abc"))
			Expect(loaded.Turns).To(HaveLen(1))
			Expect(loaded.Turns[0].Answer).To(Equal("Alice"))

			Expect(m.ClearChatState(tmpDir)).To(Succeed())
			loaded, err = m.LoadChatState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())

			Expect(m.ClearChatState(tmpDir)).To(Succeed())
		})

		It("rejects a nil state", func() {
			Expect(m.SaveChatState(nil, tmpDir)).To(HaveOccurred())
		})

		It("reports malformed transcripts", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "chat.json"), []byte("{"), 0o600)).To(Succeed())
			_, err := m.LoadChatState(tmpDir)
			Expect(err).To(MatchError(ContainSubstring("parsing chat state")))
		})
	})
})

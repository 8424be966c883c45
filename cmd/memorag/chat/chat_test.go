package chatcmder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/dotdir"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

func TestChatCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chat Command Suite")
}

type fakeAsker struct {
	queries []pipeline.Query
	err     error
}

func (f *fakeAsker) ask(_ context.Context, q pipeline.Query) (*pipeline.Answer, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Answer{
		Query:    q.Text,
		Mode:     q.Mode,
		Path:     pipeline.PathRetrieval,
		Text:     "Alice is the CEO.",
		Duration: 1500 * time.Millisecond,
	}, nil
}

var enter = tea.KeyPressMsg{Code: tea.KeyEnter}

var _ = Describe("chat model", func() {
	var (
		asker *fakeAsker
		saved []int
		state *dotdir.ChatState
		m     chatModel
	)

	BeforeEach(func() {
		asker = &fakeAsker{}
		saved = nil
		state = &dotdir.ChatState{CorpusDigest: "digest"}
		save := func(s *dotdir.ChatState) error {
			saved = append(saved, len(s.Turns))
			return nil
		}
		m = newChatModel(context.Background(), asker.ask, save, state, pipeline.ModeRetrievalOnly)

		next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
		m = next.(chatModel)
	})

	send := func(text string) tea.Cmd {
		m.input.SetValue(text)
		next, cmd := m.Update(enter)
		m = next.(chatModel)
		return cmd
	}

	It("asks on enter and records the answer", func() {
		Expect(send("Who is the CEO?")).NotTo(BeNil())
		Expect(m.pending).To(BeTrue())
		Expect(m.input.Value()).To(BeEmpty())

		msg := askCmd(context.Background(), asker.ask, m.mode, "Who is the CEO?")()
		next, _ := m.Update(msg)
		m = next.(chatModel)

		Expect(m.pending).To(BeFalse())
		Expect(state.Turns).To(HaveLen(1))
		Expect(state.Turns[0].Answer).To(Equal("Alice is the CEO."))
		Expect(state.Turns[0].Duration).To(Equal(int64(1500)))
		Expect(saved).To(Equal([]int{1}))
		Expect(asker.queries[0].Mode).To(Equal(pipeline.ModeRetrievalOnly))
		Expect(renderTranscript(state.Turns, nil)).To(ContainSubstring("Alice is the CEO."))
	})

	It("ignores enter while an answer is pending", func() {
		send("first")
		Expect(send("second")).To(BeNil())
	})

	It("ignores blank input", func() {
		Expect(send("   ")).To(BeNil())
		Expect(m.pending).To(BeFalse())
	})

	It("keeps failed questions in the transcript", func() {
		asker.err = errors.New("generation failure: boom")
		turn := answerTurn(context.Background(), asker.ask, m.mode, "Why?")
		Expect(turn.Error).To(ContainSubstring("boom"))

		next, _ := m.Update(answerMsg{turn: turn})
		m = next.(chatModel)
		Expect(state.Turns).To(HaveLen(1))
		Expect(m.status).To(ContainSubstring("boom"))
	})

	It("switches mode with /mode", func() {
		send("/mode memory-only")
		Expect(m.mode).To(Equal(pipeline.ModeMemoryOnly))
		Expect(state.Mode).To(Equal("memory-only"))

		send("/mode bogus")
		Expect(m.mode).To(Equal(pipeline.ModeMemoryOnly))
		Expect(m.status).To(ContainSubstring("bogus"))
	})

	It("clears the transcript with /clear", func() {
		state.Turns = []dotdir.ChatTurn{{Query: "q", Answer: "a"}}
		send("/clear")
		Expect(state.Turns).To(BeEmpty())
		Expect(saved).To(Equal([]int{0}))
	})

	It("quits on /exit and ctrl+c", func() {
		cmd := send("/exit")
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(BeAssignableToTypeOf(tea.QuitMsg{}))

		_, cmd = m.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(BeAssignableToTypeOf(tea.QuitMsg{}))
	})

	It("renders once sized", func() {
		Expect(m.View().Content).To(ContainSubstring("memorag chat"))
	})
})

var _ = Describe("runLines", func() {
	It("answers one question per line and saves each turn", func() {
		asker := &fakeAsker{}
		state := &dotdir.ChatState{}
		var saves int
		out := &bytes.Buffer{}

		in := strings.NewReader("Who is the CEO?\n\n/exit\nnever asked\n")
		err := runLines(context.Background(), in, out, asker.ask, func(*dotdir.ChatState) error {
			saves++
			return nil
		}, state, pipeline.ModeMemoRAG)

		Expect(err).NotTo(HaveOccurred())
		Expect(asker.queries).To(HaveLen(1))
		Expect(state.Turns).To(HaveLen(1))
		Expect(saves).To(Equal(1))
		Expect(out.String()).To(ContainSubstring("you> Who is the CEO?"))
		Expect(out.String()).To(ContainSubstring("Alice is the CEO."))
	})
})

package chatcmder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/papercomputeco/memorag/pkg/cliui"
	"github.com/papercomputeco/memorag/pkg/dotdir"
	"github.com/papercomputeco/memorag/pkg/pipeline"
)

// askFunc answers one question. It is pipeline.Pipeline.Answer in
// production.
type askFunc func(ctx context.Context, q pipeline.Query) (*pipeline.Answer, error)

// saveFunc persists the transcript after every turn. Nil disables saving.
type saveFunc func(state *dotdir.ChatState) error

type answerMsg struct {
	turn dotdir.ChatTurn
}

const chatHelp = "/mode <name> switch mode · /clear forget transcript · /exit quit"

var (
	userPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// reservedRows is the height of everything but the transcript.
const reservedRows = 6

type chatModel struct {
	ctx   context.Context
	ask   askFunc
	save  saveFunc
	state *dotdir.ChatState
	mode  pipeline.Mode

	// render formats answers for display; nil prints them as-is.
	render func(string) string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	pending bool
	ready   bool
	status  string
}

func newChatModel(ctx context.Context, ask askFunc, save saveFunc, state *dotdir.ChatState, mode pipeline.Mode) chatModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "Ask a question about the corpus"
	ti.CharLimit = 0
	ti.Focus()

	m := chatModel{
		ctx:      ctx,
		ask:      ask,
		save:     save,
		state:    state,
		mode:     mode,
		input:    ti,
		viewport: viewport.New(viewport.WithWidth(80), viewport.WithHeight(20)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		status:   chatHelp,
	}
	m.refresh()
	return m
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.viewport.SetWidth(max(20, msg.Width))
		m.viewport.SetHeight(max(3, msg.Height-reservedRows))
		m.input.SetWidth(max(10, msg.Width-6))
		m.refresh()
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = false
		m.state.Turns = append(m.state.Turns, msg.turn)
		if msg.turn.Error != "" {
			m.status = cliui.ErrorStyle.Render(msg.turn.Error)
		} else {
			m.status = fmt.Sprintf("%s in %s", msg.turn.Path, cliui.FormatDuration(time.Duration(msg.turn.Duration)*time.Millisecond))
		}
		m.persist()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.pending {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	m.pending = true
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.ask, m.mode, text))
}

func (m chatModel) command(text string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(text, " ")
	switch name {
	case "/exit", "/quit":
		return m, tea.Quit

	case "/clear":
		m.state.Turns = nil
		m.status = "Transcript cleared"
		m.persist()
		m.refresh()

	case "/mode":
		if strings.TrimSpace(arg) == "" {
			m.status = fmt.Sprintf("Mode is %s", m.mode)
			break
		}
		mode, err := pipeline.ParseMode(arg)
		if err != nil {
			m.status = cliui.ErrorStyle.Render(err.Error())
			break
		}
		m.mode = mode
		m.state.Mode = string(mode)
		m.status = fmt.Sprintf("Mode set to %s", mode)
		m.persist()

	case "/help":
		m.status = chatHelp

	default:
		m.status = cliui.ErrorStyle.Render("unknown command " + name + "; " + chatHelp)
	}
	return m, nil
}

func (m *chatModel) persist() {
	if m.save == nil {
		return
	}
	if err := m.save(m.state); err != nil {
		m.status = cliui.ErrorStyle.Render("saving transcript: " + err.Error())
	}
}

func (m *chatModel) refresh() {
	m.viewport.SetContent(renderTranscript(m.state.Turns, m.render))
	m.viewport.GotoBottom()
}

func (m chatModel) View() tea.View {
	if !m.ready {
		return tea.NewView("Loading...")
	}

	status := m.status
	if m.pending {
		status = m.spinner.View() + " Answering (" + string(m.mode) + ")"
	}

	header := titleStyle.Render("memorag chat") + "  " + metaStyle.Render(string(m.mode))
	v := tea.NewView(lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputStyle.Render(m.input.View()),
		statusStyle.Render(status),
	))
	v.AltScreen = true
	return v
}

// askCmd runs one question off the UI goroutine.
func askCmd(ctx context.Context, ask askFunc, mode pipeline.Mode, text string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{turn: answerTurn(ctx, ask, mode, text)}
	}
}

func answerTurn(ctx context.Context, ask askFunc, mode pipeline.Mode, text string) dotdir.ChatTurn {
	turn := dotdir.ChatTurn{Query: text, AskedAt: time.Now().UTC()}
	ans, err := ask(ctx, pipeline.Query{Text: text, Mode: mode})
	if err != nil {
		turn.Error = err.Error()
		return turn
	}
	turn.Answer = ans.Text
	turn.Path = string(ans.Path)
	turn.Duration = ans.Duration.Milliseconds()
	return turn
}

func renderTranscript(turns []dotdir.ChatTurn, render func(string) string) string {
	if len(turns) == 0 {
		return metaStyle.Render("No questions yet.")
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(userPrompt + t.Query + "\n")
		if t.Error != "" {
			b.WriteString(cliui.FailMark + " " + cliui.ErrorStyle.Render(t.Error) + "\n")
			continue
		}
		answer := t.Answer
		if render != nil {
			answer = render(answer)
		}
		b.WriteString(strings.TrimRight(answer, "\n") + "\n")
		if t.Path != "" {
			b.WriteString(metaStyle.Render(t.Path) + "\n")
		}
	}
	return b.String()
}

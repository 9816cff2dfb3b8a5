package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"pesan/internal/chat"
	"pesan/internal/constants"
)

type refreshMsg struct{}

type soundMsg struct{}

type alertMsg struct {
	summary string
}

type clearAlertMsg struct{}

type eventMsg struct {
	event chat.Event
}

type sendResultMsg struct {
	msg *chat.Message
	err error
}

type deleteResultMsg struct {
	id  int64
	err error
}

// Model is the root bubbletea model for the chat surface.
type Model struct {
	session *chat.Session
	bridge  *Bridge
	events  <-chan chat.Event
	peerID  int64

	viewport viewport.Model
	input    textinput.Model

	width  int
	height int
	ready  bool

	state         chat.SessionState
	connError     bool
	sending       bool
	alert         string
	pendingDelete int64
}

// NewModel creates the root model. The session must already be started.
func NewModel(session *chat.Session, bridge *Bridge, events <-chan chat.Event, peerID int64) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, /media <path> [caption], or /delete <id>"
	ti.CharLimit = 0
	ti.Focus()

	return Model{
		session: session,
		bridge:  bridge,
		events:  events,
		peerID:  peerID,
		input:   ti,
		state:   session.State(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForEvents())
}

// listenForEvents returns a command that waits for the next session
// event. Re-issued after each event so the stream keeps flowing.
func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg{event: event}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chromeHeight := 3 // header, alert line, input
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshTranscript()
		return m, nil

	case tea.FocusMsg:
		m.session.SetHidden(false)
		return m, nil

	case tea.BlurMsg:
		m.session.SetHidden(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.refreshTranscript()
		return m, nil

	case soundMsg:
		return m, tea.Printf("\a")

	case alertMsg:
		m.alert = msg.summary
		return m, clearAlertAfter(constants.ConnErrorClearAfter)

	case clearAlertMsg:
		if m.pendingDelete == 0 {
			m.alert = ""
		}
		return m, nil

	case eventMsg:
		m.applyEvent(msg.event)
		return m, m.listenForEvents()

	case sendResultMsg:
		m.sending = false
		m.input.Focus()
		if msg.err != nil {
			m.alert = "send failed: " + msg.err.Error()
			return m, clearAlertAfter(constants.ConnErrorClearAfter)
		}
		return m, nil

	case deleteResultMsg:
		if msg.err != nil {
			m.alert = "delete failed: " + msg.err.Error()
			return m, clearAlertAfter(constants.ConnErrorClearAfter)
		}
		m.bridge.RemoveMessage(msg.id)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.mirrorScrollPosition()
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A pending delete turns the next keypress into a confirmation.
	if m.pendingDelete != 0 {
		switch msg.String() {
		case "y", "Y":
			id := m.pendingDelete
			m.pendingDelete = 0
			m.alert = ""
			return m, m.deleteCmd(id)
		default:
			m.pendingDelete = 0
			m.alert = ""
			return m, nil
		}
	}

	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		if m.sending {
			return m, nil
		}
		return m.handleSubmit()

	case "pgup", "pgdown", "up", "down", "home", "end":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.mirrorScrollPosition()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}

	if strings.HasPrefix(raw, "/delete ") {
		id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(raw, "/delete ")), 10, 64)
		if err != nil || id <= 0 {
			m.alert = "usage: /delete <message id>"
			return m, clearAlertAfter(constants.ConnErrorClearAfter)
		}
		m.input.Reset()
		m.pendingDelete = id
		m.alert = fmt.Sprintf("delete message #%d? press y to confirm", id)
		return m, nil
	}

	if strings.HasPrefix(raw, "/media ") {
		rest := strings.TrimSpace(strings.TrimPrefix(raw, "/media "))
		path, caption := rest, ""
		if i := strings.IndexByte(rest, ' '); i > 0 {
			path, caption = rest[:i], strings.TrimSpace(rest[i+1:])
		}
		data, err := os.ReadFile(path)
		if err != nil {
			m.alert = "cannot read file: " + err.Error()
			return m, clearAlertAfter(constants.ConnErrorClearAfter)
		}
		m.input.Reset()
		m.sending = true
		m.input.Blur()
		att := &chat.Attachment{Filename: filepath.Base(path), Data: data}
		return m, m.sendCmd(caption, att)
	}

	m.input.Reset()
	m.sending = true
	m.input.Blur()
	return m, m.sendCmd(raw, nil)
}

func (m Model) sendCmd(text string, attachment *chat.Attachment) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), constants.SendTimeout)
		defer cancel()
		msg, err := session.Send(ctx, text, attachment)
		return sendResultMsg{msg: msg, err: err}
	}
}

func (m Model) deleteCmd(id int64) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), constants.SendTimeout)
		defer cancel()
		return deleteResultMsg{id: id, err: session.Delete(ctx, id)}
	}
}

func clearAlertAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearAlertMsg{}
	})
}

func (m *Model) applyEvent(event chat.Event) {
	switch event.Type {
	case chat.EventStateChanged:
		if event.State != nil {
			m.state = event.State.NewState
		}
	case chat.EventConnError:
		m.connError = true
	case chat.EventConnErrorCleared:
		m.connError = false
	case chat.EventBatchMerged:
		if event.Merge != nil {
			log.Debug().Int("merged", event.Merge.Merged).Msg("Transcript updated")
		}
	}
}

// refreshTranscript rebuilds the viewport from the bridge's rendered
// lines and applies any requested or follow-implied scroll.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	lines, gotoBottom := m.bridge.snapshot()
	wasNearBottom := m.nearBottom()
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if gotoBottom || wasNearBottom {
		m.viewport.GotoBottom()
	}
	m.mirrorScrollPosition()
}

// nearBottom reports whether the view sits within the follow slack of
// the bottom.
func (m *Model) nearBottom() bool {
	below := m.viewport.TotalLineCount() - (m.viewport.YOffset + m.viewport.Height)
	return below <= followSlackLines
}

func (m *Model) mirrorScrollPosition() {
	m.bridge.setAtBottom(m.nearBottom())
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := headerStyle.Render(fmt.Sprintf("pesan | chatting with user %d", m.peerID)) +
		hintStyle.Render("  ["+string(m.state)+"]")
	if m.connError {
		header += "  " + errorStyle.Render("● connection error")
	}

	alertLine := ""
	switch {
	case m.alert != "":
		alertLine = alertStyle.Render(m.alert)
	case m.sending:
		alertLine = hintStyle.Render("sending...")
	}

	return header + "\n" + m.viewport.View() + "\n" + alertLine + "\n" + m.input.View()
}

// Package tui is the terminal chat surface. It implements the engine's
// renderer and notifier collaborators on top of bubbletea.
package tui

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"pesan/internal/chat"
)

// followSlackLines is the terminal analog of the reference surface's
// 100px bottom-proximity threshold: within this many lines of the
// bottom, new content pulls the view down.
const followSlackLines = 2

type renderedLine struct {
	id   int64
	text string
}

// Bridge implements chat.Renderer and chat.Notifier. The engine calls
// it from its own goroutines; it buffers rendered lines under a mutex
// and nudges the bubbletea program, which pulls a snapshot on its own
// thread.
type Bridge struct {
	mu sync.Mutex

	program       *tea.Program
	selfID        int64
	notifyAllowed bool

	lines      []renderedLine
	atBottom   bool
	wantBottom bool
}

// NewBridge creates a bridge rendering for the local user selfID.
func NewBridge(selfID int64, notifyAllowed bool) *Bridge {
	return &Bridge{
		selfID:        selfID,
		notifyAllowed: notifyAllowed,
		atBottom:      true,
	}
}

// SetProgram attaches the running bubbletea program. Until then,
// renders accumulate silently.
func (b *Bridge) SetProgram(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

// RenderMessage implements chat.Renderer.
func (b *Bridge) RenderMessage(m chat.Message) {
	b.mu.Lock()
	b.lines = append(b.lines, renderedLine{id: m.ID, text: b.formatMessage(m)})
	b.mu.Unlock()
	b.send(refreshMsg{})
}

// IsScrolledToBottom implements chat.Renderer. It reports the scroll
// position mirrored from the view on its last update.
func (b *Bridge) IsScrolledToBottom() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.atBottom
}

// ScrollToBottom implements chat.Renderer.
func (b *Bridge) ScrollToBottom() {
	b.mu.Lock()
	b.wantBottom = true
	b.mu.Unlock()
	b.send(refreshMsg{})
}

// PlaySound implements chat.Notifier with the terminal bell.
func (b *Bridge) PlaySound() {
	b.send(soundMsg{})
}

// NotificationsAllowed implements chat.Notifier.
func (b *Bridge) NotificationsAllowed() bool {
	return b.notifyAllowed
}

// ShowDesktopNotification implements chat.Notifier. The terminal
// equivalent is an alert line in the UI.
func (b *Bridge) ShowDesktopNotification(summary string) {
	b.send(alertMsg{summary: summary})
}

// RemoveMessage drops a deleted message from the rendered lines.
func (b *Bridge) RemoveMessage(id int64) {
	b.mu.Lock()
	kept := b.lines[:0]
	for _, l := range b.lines {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	b.lines = kept
	b.mu.Unlock()
	b.send(refreshMsg{})
}

// snapshot returns the rendered lines and consumes any pending
// scroll-to-bottom request.
func (b *Bridge) snapshot() (lines []string, gotoBottom bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines = make([]string, len(b.lines))
	for i, l := range b.lines {
		lines[i] = l.text
	}
	gotoBottom = b.wantBottom
	b.wantBottom = false
	return lines, gotoBottom
}

// setAtBottom mirrors the view's scroll position after each update.
func (b *Bridge) setAtBottom(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.atBottom = v
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) formatMessage(m chat.Message) string {
	style := peerStyle
	name := m.SenderName
	if m.SenderID == b.selfID {
		style = selfStyle
		if name == "" {
			name = "you"
		}
	}
	if name == "" {
		name = fmt.Sprintf("user %d", m.SenderID)
	}

	line := timeStyle.Render(m.Timestamp) + " " + style.Render(name+":")
	if m.Content != "" {
		line += " " + m.Content
	}
	if m.MediaURL != "" {
		line += " " + mediaStyle.Render(fmt.Sprintf("[%s %s]", m.MediaType, m.MediaURL))
	}
	return fmt.Sprintf("%s %s", line, hintStyle.Render(fmt.Sprintf("#%d", m.ID)))
}

package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorSelf    = lipgloss.Color("#00FF66") // Own messages
	colorPeer    = lipgloss.Color("#00CCFF") // Peer messages
	colorMuted   = lipgloss.Color("#5555AA") // Timestamps, hints
	colorError   = lipgloss.Color("#FF3366") // Errors, connection problems
	colorWarning = lipgloss.Color("#FFCC00") // Alerts, pending states
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPeer)

	selfStyle = lipgloss.NewStyle().
			Foreground(colorSelf)

	peerStyle = lipgloss.NewStyle().
			Foreground(colorPeer)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	mediaStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

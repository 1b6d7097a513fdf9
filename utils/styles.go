package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette, trimmed from the teacher's internal/tui/styles.go. The
// inspect TUI renders with all of it except CriticalColor (used only by
// ErrorStyle, which the TUI does not call) and WarningColor.
var (
	CriticalColor = lipgloss.Color("#CC3333") // Dark red
	WarningColor  = lipgloss.Color("#FF8800") // Orange
	GoodColor     = lipgloss.Color("#228B22") // Forest green
	InfoColor     = lipgloss.Color("#4682B4") // Steel blue
	TextColor     = lipgloss.Color("#CCCCCC") // Light gray
	MutedColor    = lipgloss.Color("#888888") // Medium gray
	BorderColor   = lipgloss.Color("#666666") // Dark gray
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(MutedColor).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(CriticalColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().Foreground(MutedColor)
	GoodStyle  = lipgloss.NewStyle().Foreground(GoodColor).Bold(true)
)

// CreateProgressBar renders a filled/empty block bar for percentage in
// [0,1], used by cmd/inspect for the heap-utilisation readout alongside
// the ntcharts sparkline.
func CreateProgressBar(percentage float64, width int, color lipgloss.Color) string {
	if width < 4 {
		return fmt.Sprintf("%.0f%%", percentage*100)
	}
	filled := int(math.Round(percentage * float64(width)))
	filled = max(0, min(filled, width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if color != "" {
		bar = lipgloss.NewStyle().Foreground(color).Render(bar)
	}
	return bar
}

// FormatKeyValue renders a label/value pair with the label column padded
// to keyWidth. No pane of the inspect TUI currently calls it.
func FormatKeyValue(key, value string, keyWidth int) string {
	keyStyled := InfoStyle.Width(keyWidth).Render(key + ":")
	valueStyled := TextStyle.Render(value)
	return lipgloss.JoinHorizontal(lipgloss.Left, keyStyled, " ", valueStyled)
}

var (
	InfoStyle = lipgloss.NewStyle().Foreground(InfoColor)
	TextStyle = lipgloss.NewStyle().Foreground(TextColor)
)

package inspect

import (
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jdiag-vm/utils"
)

// pollInterval mirrors the teacher's tea.Tick-driven refresh pattern
// (internal/monitor/app.go) rather than pushing a tea.Msg per bytecode
// instruction, which would flood the event loop at interpreter speed.
const pollInterval = 80 * time.Millisecond

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type frameItem string

func (f frameItem) Title() string       { return string(f) }
func (f frameItem) Description() string { return "" }
func (f frameItem) FilterValue() string { return string(f) }

// Model is the cmd/inspect bubbletea program: a log viewport for tempPrint
// output, a list of live call frames (top of stack first), and a heap-usage
// sparkline, all polled from a Runner executing on its own goroutine.
type Model struct {
	runner *Runner

	width, height int
	sparkWidth    int
	log           viewport.Model
	frames        list.Model

	lastSnapshot Snapshot
	quitting     bool
}

func NewModel(runner *Runner) Model {
	frameList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	frameList.Title = "Call Stack"
	frameList.SetShowHelp(false)

	return Model{
		runner: runner,
		log:    viewport.New(0, 0),
		frames: frameList,
	}
}

// renderSpark rebuilds a sparkline view from scratch each render: the
// Runner's snapshot already carries the full sample window (sparkHistory),
// so there is no running widget state to keep in sync with it.
func renderSpark(samples []float64, width int) string {
	if width < 4 || len(samples) == 0 {
		return ""
	}
	sl := sparkline.New(width, 3, sparkline.WithStyle(lipgloss.NewStyle().Foreground(utils.GoodColor)))
	for _, s := range samples {
		sl.Push(s)
	}
	sl.Draw()
	return sl.View()
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		snap := m.runner.Snapshot()
		m.applySnapshot(snap)
		if snap.Done {
			return m, tea.Quit
		}
		return m, tick()
	}

	var cmd tea.Cmd
	m.frames, cmd = m.frames.Update(msg)
	return m, cmd
}

func (m *Model) resize() {
	headerHeight := 4
	footerHeight := 3
	bodyHeight := max(m.height-headerHeight-footerHeight, 3)

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth

	m.log.Width = leftWidth
	m.log.Height = bodyHeight
	m.frames.SetSize(rightWidth, bodyHeight)
	m.sparkWidth = max(m.width-2, 0)
}

func (m *Model) applySnapshot(snap Snapshot) {
	m.lastSnapshot = snap

	m.log.SetContent(joinLines(snap.Printed))
	m.log.GotoBottom()

	items := make([]list.Item, len(snap.FrameStack))
	for i, f := range snap.FrameStack {
		items[i] = frameItem(f)
	}
	m.frames.SetItems(items)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading...\n"
	}
	if m.quitting {
		return ""
	}

	header := utils.TitleStyle.Render("jdiag inspect") + "  " +
		fmt.Sprintf("steps=%d heap=%s/%s", m.lastSnapshot.Steps,
			byteCount(m.lastSnapshot.HeapUsed), byteCount(m.lastSnapshot.HeapMax))

	logPane := utils.BoxStyle.Width(m.log.Width).Height(m.log.Height).Render(m.log.View())
	framesPane := utils.BoxStyle.Width(m.frames.Width()).Height(m.frames.Height()).Render(m.frames.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, logPane, framesPane)

	var heapPct float64
	if m.lastSnapshot.HeapMax > 0 {
		heapPct = float64(m.lastSnapshot.HeapUsed) / float64(m.lastSnapshot.HeapMax)
	}
	footer := utils.CreateProgressBar(heapPct, 30, utils.InfoColor) + "  " +
		renderSpark(m.lastSnapshot.HeapSpark, m.sparkWidth)

	status := utils.StatusBarStyle.Width(m.width).Render("q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, status)
}

func byteCount(b uint32) string {
	return utils.MemorySize(b).String()
}

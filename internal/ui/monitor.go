package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gangulaabhinav/ARWalking/internal/app"
	"github.com/gangulaabhinav/ARWalking/internal/peers"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// DefaultRefresh is how often the monitor polls the node.
const DefaultRefresh = 250 * time.Millisecond

const (
	shownEvents = 6
	shownChats  = 4
)

// Source is the node the monitor displays.
type Source interface {
	Snapshot() app.Snapshot
	Chats() []app.Chat
	SendChat(peer radio.PeerHandle, text string) error
}

type refreshMsg time.Time

type chatSentMsg struct {
	to  string
	err error
}

type monitorKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Chat   key.Binding
	Send   key.Binding
	Cancel key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Chat, k.Help, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Chat},
		{k.Send, k.Cancel},
		{k.Help, k.Quit},
	}
}

// composeKeyMap is shown while a chat message is being typed.
type composeKeyMap struct {
	Send   key.Binding
	Cancel key.Binding
}

func (k composeKeyMap) ShortHelp() []key.Binding { return []key.Binding{k.Send, k.Cancel} }

func (k composeKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Send, k.Cancel}} }

var monitorKeys = monitorKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Chat: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "chat"),
	),
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// peerItem is one tracked device in the peer list.
type peerItem struct {
	device peers.Device
}

func (i peerItem) FilterValue() string { return i.device.Name }

type peerDelegate struct{}

func (d peerDelegate) Height() int                             { return 1 }
func (d peerDelegate) Spacing() int                            { return 0 }
func (d peerDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d peerDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(peerItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderPeer(i.device, index == m.Index()))
}

func renderPeer(d peers.Device, selected bool) string {
	distance := PendingStyle.Render("not ranged")
	if d.DistanceMm != peers.UnknownDistance {
		distance = OKStyle.Render(fmt.Sprintf("%.2fm", float64(d.DistanceMm)/1000))
	}
	anchor := ""
	if d.Anchor {
		anchor = MutedStyle.Render(" anchor " + d.Position.String())
	}

	line := fmt.Sprintf("%-16s #%-4d %s%s", d.Name, d.Peer, distance, anchor)
	if selected {
		return SelectedStyle.Render("> ") + line
	}
	return "  " + line
}

// Monitor is a live view of one node.
type Monitor struct {
	source  Source
	anchors int
	refresh time.Duration

	keys        monitorKeyMap
	composeKeys composeKeyMap
	help        help.Model
	spinner     spinner.Model
	peers       list.Model
	input       textinput.Model
	progress    progress.Model

	snap      app.Snapshot
	chats     []app.Chat
	composing bool
	chatTo    peers.Device
	status    string
	width     int
}

// NewMonitor returns a monitor of source. anchors is the number of
// configured anchor positions, used for the ranging progress bar.
func NewMonitor(source Source, anchors int, refresh time.Duration) Monitor {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	l := list.New(nil, peerDelegate{}, 0, 8)
	l.Title = "Peers"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	ti := textinput.New()
	ti.Placeholder = "message"
	ti.CharLimit = 120
	ti.Width = 40

	width, _ := GetTerminalSize()
	m := Monitor{
		source:      source,
		anchors:     anchors,
		refresh:     refresh,
		keys:        monitorKeys,
		composeKeys: composeKeyMap{Send: monitorKeys.Send, Cancel: monitorKeys.Cancel},
		help:        help.New(),
		spinner:     s,
		peers:       l,
		input:       ti,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	m.resize(width)
	return m
}

func (m *Monitor) resize(width int) {
	m.width = clampWidth(width)
	m.peers.SetWidth(m.width - 4)
	m.help.Width = m.width
}

func (m Monitor) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init starts polling and the spinner.
func (m Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return refreshMsg(time.Now()) })
}

// Update handles refreshes, chat results and keys.
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.pull()
		return m, m.tick()

	case chatSentMsg:
		if msg.err != nil {
			m.status = FailStyle.Render(fmt.Sprintf("chat to %s failed: %v", msg.to, msg.err))
		} else {
			m.status = OKStyle.Render("sent to " + msg.to)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.composing {
			return m.updateCompose(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Chat):
			item, ok := m.peers.SelectedItem().(peerItem)
			if !ok {
				m.status = PendingStyle.Render("no peer selected")
				return m, nil
			}
			m.composing = true
			m.chatTo = item.device
			m.status = ""
			m.input.Reset()
			return m, m.input.Focus()
		}
	}

	var cmd tea.Cmd
	m.peers, cmd = m.peers.Update(msg)
	return m, cmd
}

func (m Monitor) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.composing = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		m.composing = false
		m.input.Blur()
		if text == "" {
			return m, nil
		}
		return m, m.sendChat(m.chatTo, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Monitor) sendChat(to peers.Device, text string) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return chatSentMsg{to: to.Name, err: source.SendChat(to.Peer, text)}
	}
}

// pull refreshes the model from the source.
func (m *Monitor) pull() {
	m.snap = m.source.Snapshot()
	m.chats = m.source.Chats()

	items := make([]list.Item, len(m.snap.Devices))
	for i, d := range m.snap.Devices {
		items[i] = peerItem{device: d}
	}
	m.peers.SetItems(items)
}

// ranged counts anchors with a measured distance.
func ranged(devices []peers.Device) int {
	n := 0
	for _, d := range devices {
		if d.Anchor && d.DistanceMm != peers.UnknownDistance {
			n++
		}
	}
	return n
}

// View renders the monitor.
func (m Monitor) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("nanrtt " + m.snap.DeviceName))
	b.WriteString("\n\n")
	b.WriteString(SectionStyle(m.width).Render(m.statusView()))
	b.WriteString("\n")
	b.WriteString(SectionStyle(m.width).Render(m.peersView()))
	b.WriteString("\n")
	b.WriteString(SectionStyle(m.width).Render(m.activityView()))
	b.WriteString("\n")

	if m.composing {
		b.WriteString(fmt.Sprintf("To %s: %s\n", m.chatTo.Name, m.input.View()))
	} else if m.status != "" {
		b.WriteString(m.status + "\n")
	}

	b.WriteString("\n")
	if m.composing {
		b.WriteString(m.help.View(m.composeKeys))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Monitor) statusView() string {
	var b strings.Builder

	radioState := OKStyle.Render("available")
	if !m.snap.Available {
		radioState = FailStyle.Render("unavailable")
	}
	b.WriteString(KeyStyle.Render("Service") + ValueStyle.Render(m.snap.Service) + "\n")
	b.WriteString(KeyStyle.Render("Radio") + radioState + "\n")

	b.WriteString(KeyStyle.Render("Position"))
	if p := m.snap.Position; p != nil {
		b.WriteString(ValueStyle.Render(fmt.Sprintf("%s ±%.0fmm from %d anchors",
			p.Position, p.RMSErrorMm, p.Anchors)))
	} else {
		b.WriteString(m.spinner.View() + MutedStyle.Render(" locating"))
	}
	b.WriteString("\n")

	if m.anchors > 0 {
		n := ranged(m.snap.Devices)
		b.WriteString(KeyStyle.Render("Anchors"))
		b.WriteString(m.progress.ViewAs(float64(n) / float64(m.anchors)))
		b.WriteString(fmt.Sprintf(" %d/%d\n", n, m.anchors))
	}

	c := m.snap.Counters
	b.WriteString(KeyStyle.Render("Traffic"))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("sent %d  failed %d  received %d  malformed %d  rounds %d",
		c.Sent, c.SendFailed, c.Received, c.Malformed, c.RangingRounds)))
	return b.String()
}

func (m Monitor) peersView() string {
	if len(m.snap.Devices) == 0 {
		return SelectedStyle.Render("Peers") + "\n" + MutedStyle.Render("no peers yet")
	}
	m.peers.SetHeight(len(m.snap.Devices) + 4)
	return m.peers.View()
}

func (m Monitor) activityView() string {
	var lines []string
	for _, c := range tail(m.chats, shownChats) {
		lines = append(lines, SelectedStyle.Render(c.From+": ")+c.Text)
	}
	for _, e := range tail(m.snap.Events, shownEvents) {
		lines = append(lines, MutedStyle.Render(e.At.Format("15:04:05"))+" "+e.Text)
	}
	if len(lines) == 0 {
		return MutedStyle.Render("no activity")
	}
	return strings.Join(lines, "\n")
}

func tail[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// Run shows the monitor until the user quits or ctx is done.
func Run(ctx context.Context, source Source, anchors int) error {
	p := tea.NewProgram(NewMonitor(source, anchors, DefaultRefresh),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

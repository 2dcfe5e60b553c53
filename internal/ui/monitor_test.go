package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangulaabhinav/ARWalking/internal/app"
	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/peers"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

type sentChat struct {
	peer radio.PeerHandle
	text string
}

type fakeSource struct {
	snap    app.Snapshot
	chats   []app.Chat
	sent    []sentChat
	sendErr error
}

func (f *fakeSource) Snapshot() app.Snapshot { return f.snap }
func (f *fakeSource) Chats() []app.Chat      { return f.chats }

func (f *fakeSource) SendChat(peer radio.PeerHandle, text string) error {
	f.sent = append(f.sent, sentChat{peer, text})
	return f.sendErr
}

func twoPeers() *fakeSource {
	return &fakeSource{snap: app.Snapshot{
		DeviceName: "walker",
		Service:    "General",
		Available:  true,
		Devices: []peers.Device{
			{Name: "anchor-1", Peer: 1, Anchor: true, DistanceMm: 3000},
			{Name: "anchor-2", Peer: 2, Anchor: true, DistanceMm: peers.UnknownDistance},
		},
	}}
}

func update(t *testing.T, m Monitor, msg tea.Msg) (Monitor, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Monitor)
	require.True(t, ok)
	return mm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMonitor_RefreshShowsPeers(t *testing.T) {
	src := twoPeers()
	m := NewMonitor(src, 3, 0)

	m, cmd := update(t, m, refreshMsg{})
	assert.NotNil(t, cmd, "refresh schedules the next poll")
	assert.Len(t, m.peers.Items(), 2)
	assert.Equal(t, 1, ranged(m.snap.Devices))

	view := m.View()
	assert.Contains(t, view, "anchor-1")
	assert.Contains(t, view, "3.00m")
	assert.Contains(t, view, "not ranged")
	assert.Contains(t, view, "1/3")
	assert.Contains(t, view, "locating")

	src.snap.Position = &locate.Result{Position: locate.Point{X: 1500, Y: 2500}, Anchors: 3}
	m, _ = update(t, m, refreshMsg{})
	assert.Contains(t, m.View(), "(1.50m, 2.50m)")
}

func TestMonitor_ChatToSelectedPeer(t *testing.T) {
	src := twoPeers()
	m := NewMonitor(src, 2, 0)
	m, _ = update(t, m, refreshMsg{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, runes("c"))
	require.True(t, m.composing)
	assert.Equal(t, "anchor-2", m.chatTo.Name)

	m, _ = update(t, m, runes("hello"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.composing)
	require.NotNil(t, cmd)

	msg := cmd()
	require.Equal(t, []sentChat{{peer: 2, text: "hello"}}, src.sent)

	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "sent to anchor-2")
}

func TestMonitor_ChatFailureAndCancel(t *testing.T) {
	src := twoPeers()
	src.sendErr = errors.New("unknown peer")
	m := NewMonitor(src, 2, 0)
	m, _ = update(t, m, refreshMsg{})

	m, _ = update(t, m, runes("c"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.composing)

	m, _ = update(t, m, runes("c"))
	m, _ = update(t, m, runes("hi"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "failed: unknown peer")
	assert.Len(t, src.sent, 1)
}

func TestMonitor_ChatWithoutPeers(t *testing.T) {
	m := NewMonitor(&fakeSource{}, 0, 0)
	m, _ = update(t, m, refreshMsg{})
	m, _ = update(t, m, runes("c"))
	assert.False(t, m.composing)
	assert.Contains(t, m.View(), "no peer selected")
}

func TestMonitor_Quit(t *testing.T) {
	m := NewMonitor(&fakeSource{}, 0, 0)
	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSummary(t *testing.T) {
	src := twoPeers()
	assert.Equal(t, "walker peers=2 position=unknown sent=0 received=0 malformed=0", Summary(src.snap))

	src.snap.Available = false
	src.snap.Position = &locate.Result{Position: locate.Point{X: 1000, Y: 2000}, RMSErrorMm: 12, Anchors: 3}
	assert.Equal(t,
		"walker peers=2 radio=unavailable position=(1.00m, 2.00m) rms=12mm anchors=3 sent=0 received=0 malformed=0",
		Summary(src.snap))
}

package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

const timeout = time.Second

func attach(t *testing.T, r *Radio) radio.Attachment {
	t.Helper()
	type result struct {
		att radio.Attachment
		err error
	}
	ch := make(chan result, 1)
	r.Attach(func(att radio.Attachment, err error) { ch <- result{att, err} })
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.att
	case <-time.After(timeout):
		t.Fatal("attach did not complete")
		return nil
	}
}

func next(t *testing.T, events <-chan radio.Event) radio.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(timeout):
		t.Fatal("no event")
		return nil
	}
}

func waitClosed(t *testing.T, events <-chan radio.Event) []radio.Event {
	t.Helper()
	var rest []radio.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return rest
			}
			rest = append(rest, ev)
		case <-deadline:
			t.Fatal("channel not closed")
			return nil
		}
	}
}

func started(t *testing.T, events <-chan radio.Event) radio.DiscoverySession {
	t.Helper()
	ev := next(t, events)
	s, ok := ev.(radio.Started)
	require.True(t, ok, "want Started, got %T", ev)
	return s.Session
}

type rangingAnswer struct {
	results []radio.RangingResult
	code    int
}

func rangeOnce(t *testing.T, r *Radio, peers ...radio.PeerHandle) rangingAnswer {
	t.Helper()
	ch := make(chan rangingAnswer, 1)
	r.StartRanging(radio.RangingRequest{Peers: peers}, radio.RangingFuncs{
		Results: func(res []radio.RangingResult) { ch <- rangingAnswer{results: res} },
		Failure: func(code int) { ch <- rangingAnswer{code: code} },
	})
	select {
	case a := <-ch:
		return a
	case <-time.After(timeout):
		t.Fatal("no ranging answer")
		return rangingAnswer{}
	}
}

func TestAir_DiscoveryAndMessaging(t *testing.T) {
	air := NewAir()
	anchor := air.NewRadio("anchor", locate.Point{})
	walker := air.NewRadio("walker", locate.Point{X: 1000})

	pubEvents := attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "General", ServiceSpecificInfo: []byte("anchor")})
	pub := started(t, pubEvents)

	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	sub := started(t, subEvents)

	found, ok := next(t, subEvents).(radio.PeerDiscovered)
	require.True(t, ok)
	assert.Equal(t, radio.PeerHandle(1), found.Peer)
	assert.Equal(t, "anchor", string(found.ServiceSpecificInfo))

	sub.SendMessage(found.Peer, 7, []byte("walker|1|1"))
	assert.Equal(t, radio.SendResult{MessageID: 7, Succeeded: true}, next(t, subEvents))

	got, ok := next(t, pubEvents).(radio.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "walker|1|1", string(got.Payload))

	pub.SendMessage(got.Peer, 8, []byte("anchor|11|11"))
	assert.Equal(t, radio.SendResult{MessageID: 8, Succeeded: true}, next(t, pubEvents))
	reply, ok := next(t, subEvents).(radio.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, found.Peer, reply.Peer, "the same publisher keeps its handle")

	sub.SendMessage(99, 9, []byte("nobody"))
	assert.Equal(t, radio.SendResult{MessageID: 9}, next(t, subEvents))
}

func TestAir_SameRadioDoesNotDiscoverItself(t *testing.T) {
	air := NewAir()
	r := air.NewRadio("solo", locate.Point{})
	att := attach(t, r)

	pubEvents := att.Publish(radio.PublishConfig{ServiceName: "General"})
	started(t, pubEvents)
	subEvents := att.Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, subEvents)

	select {
	case ev := <-subEvents:
		t.Fatalf("unexpected event %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMatches(t *testing.T) {
	pub := radio.PublishConfig{ServiceName: "General", MatchFilter: [][]byte{[]byte("floor1"), []byte("lab")}}
	tests := []struct {
		name string
		sub  radio.SubscribeConfig
		want bool
	}{
		{"no filter", radio.SubscribeConfig{ServiceName: "General"}, true},
		{"other service", radio.SubscribeConfig{ServiceName: "Other"}, false},
		{"equal prefix", radio.SubscribeConfig{ServiceName: "General", MatchFilter: [][]byte{[]byte("floor1")}}, true},
		{"wildcard element", radio.SubscribeConfig{ServiceName: "General", MatchFilter: [][]byte{nil, []byte("lab")}}, true},
		{"mismatch", radio.SubscribeConfig{ServiceName: "General", MatchFilter: [][]byte{[]byte("floor2")}}, false},
		{"longer than publisher", radio.SubscribeConfig{ServiceName: "General", MatchFilter: [][]byte{nil, nil, []byte("x")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(pub, tt.sub))
		})
	}
}

func TestAir_Ranging(t *testing.T) {
	air := NewAir()
	anchor := air.NewRadio("anchor", locate.Point{})
	plain := air.NewRadio("plain", locate.Point{X: 1000, Y: 1000})
	walker := air.NewRadio("walker", locate.Point{X: 3000, Y: 4000})

	started(t, attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "General", RangingEnabled: true}))
	started(t, attach(t, plain).Publish(radio.PublishConfig{ServiceName: "General"}))

	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, subEvents)
	handles := map[radio.PeerHandle]bool{}
	for i := 0; i < 2; i++ {
		d := next(t, subEvents).(radio.PeerDiscovered)
		handles[d.Peer] = true
	}
	require.Len(t, handles, 2)

	answer := rangeOnce(t, walker, 1, 2, 42)
	require.Len(t, answer.results, 3)

	byPeer := map[radio.PeerHandle]radio.RangingResult{}
	for _, res := range answer.results {
		byPeer[res.Peer] = res
	}
	var success, fail int
	for _, res := range byPeer {
		if res.Succeeded() {
			success++
			assert.Equal(t, 5000, res.DistanceMm)
			assert.Equal(t, measurementsPerPeer, res.NumSuccessfulMeasurements)
			assert.Greater(t, res.RTT, time.Duration(0))
		} else {
			fail++
		}
	}
	assert.Equal(t, 1, success, "only the publisher with ranging enabled answers")
	assert.Equal(t, 2, fail)
	assert.Equal(t, radio.StatusFail, byPeer[42].Status)

	walker.FailNextRanging(7)
	assert.Equal(t, 7, rangeOnce(t, walker, 1).code)
	assert.True(t, rangeOnce(t, walker, 1).results[0].Succeeded(), "failure is one-shot")
	assert.Equal(t, 3, walker.RangingRequests())
}

func TestAir_NoiseIsReproducible(t *testing.T) {
	distances := func() int {
		air := NewAir(WithNoise(100, 42))
		anchor := air.NewRadio("anchor", locate.Point{})
		walker := air.NewRadio("walker", locate.Point{X: 2000})
		started(t, attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "S", RangingEnabled: true}))
		subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "S"})
		started(t, subEvents)
		next(t, subEvents)
		return rangeOnce(t, walker, 1).results[0].DistanceMm
	}
	first := distances()
	assert.Equal(t, first, distances())
	assert.InDelta(t, 2000, first, 500)
}

func TestRadio_FailNextAttach(t *testing.T) {
	air := NewAir()
	r := air.NewRadio("r", locate.Point{})
	r.FailNextAttach(1)

	errs := make(chan error, 1)
	r.Attach(func(_ radio.Attachment, err error) { errs <- err })
	assert.ErrorIs(t, <-errs, ErrAttachRefused)

	attach(t, r)
	assert.Equal(t, 1, r.Attachments())
}

func TestRadio_UnavailableTerminatesSessions(t *testing.T) {
	air := NewAir()
	anchor := air.NewRadio("anchor", locate.Point{})
	walker := air.NewRadio("walker", locate.Point{X: 10})

	pubEvents := attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "General"})
	started(t, pubEvents)
	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, subEvents)
	found := next(t, subEvents).(radio.PeerDiscovered)

	anchor.SetAvailable(false)

	select {
	case <-anchor.StateChanges():
	case <-time.After(timeout):
		t.Fatal("no state change broadcast")
	}
	assert.False(t, anchor.IsAvailable())
	assert.Equal(t, []radio.Event{radio.Terminated{}}, waitClosed(t, pubEvents))
	assert.Equal(t, radio.PeerLost{Peer: found.Peer}, next(t, subEvents))

	errs := make(chan error, 1)
	anchor.Attach(func(_ radio.Attachment, err error) { errs <- err })
	assert.ErrorIs(t, <-errs, ErrUnavailable)
}

func TestSession_LocalCloseHasNoTerminated(t *testing.T) {
	air := NewAir()
	anchor := air.NewRadio("anchor", locate.Point{})
	walker := air.NewRadio("walker", locate.Point{X: 10})

	pubEvents := attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "General"})
	pub := started(t, pubEvents)
	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, subEvents)
	found := next(t, subEvents).(radio.PeerDiscovered)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	assert.Empty(t, waitClosed(t, pubEvents))
	assert.Equal(t, radio.PeerLost{Peer: found.Peer}, next(t, subEvents))
}

func TestAttachment_CloseClosesSessions(t *testing.T) {
	air := NewAir()
	r := air.NewRadio("r", locate.Point{})
	att := attach(t, r)
	events := att.Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, events)

	require.NoError(t, att.Close())
	assert.Empty(t, waitClosed(t, events))
	assert.Zero(t, r.Attachments())

	late := att.Publish(radio.PublishConfig{ServiceName: "General"})
	assert.Equal(t, []radio.Event{radio.Terminated{}}, waitClosed(t, late), "closed attachment cannot start sessions")
}

func TestAir_RangeLimit(t *testing.T) {
	air := NewAir(WithRange(5000))
	anchor := air.NewRadio("anchor", locate.Point{})
	walker := air.NewRadio("walker", locate.Point{X: 8000})

	started(t, attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "General", RangingEnabled: true}))
	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, subEvents)

	walker.MoveTo(locate.Point{X: 4000})
	found := next(t, subEvents).(radio.PeerDiscovered)
	assert.Equal(t, 4000, rangeOnce(t, walker, found.Peer).results[0].DistanceMm)

	walker.MoveTo(locate.Point{X: 6000})
	assert.Equal(t, radio.PeerLost{Peer: found.Peer}, next(t, subEvents))
	assert.Equal(t, radio.StatusFail, rangeOnce(t, walker, found.Peer).results[0].Status)

	walker.MoveTo(locate.Point{X: 1000})
	again := next(t, subEvents).(radio.PeerDiscovered)
	assert.Equal(t, found.Peer, again.Peer)
	assert.Equal(t, locate.Point{X: 1000}, walker.Position())
}

func TestConfigUpdate_Rematches(t *testing.T) {
	air := NewAir()
	anchor := air.NewRadio("anchor", locate.Point{})
	walker := air.NewRadio("walker", locate.Point{X: 10})

	pubEvents := attach(t, anchor).Publish(radio.PublishConfig{ServiceName: "Hidden"})
	pub := started(t, pubEvents).(radio.PublishSession)
	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	started(t, subEvents)

	pub.UpdatePublish(radio.PublishConfig{ServiceName: "General", RangingEnabled: true})
	assert.Equal(t, radio.ConfigUpdated{}, next(t, pubEvents))
	found := next(t, subEvents).(radio.PeerDiscovered)
	assert.True(t, rangeOnce(t, walker, found.Peer).results[0].Succeeded())
}

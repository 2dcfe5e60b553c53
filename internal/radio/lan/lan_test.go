package lan

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

const timeout = 3 * time.Second

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name      string
		entry     *zeroconf.ServiceEntry
		wantNil   bool
		wantIP    string
		wantInfo  string
		wantRange bool
	}{
		{
			name: "publisher with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "pub-1"},
				Port:          4242,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          txtRecords("node-a", "General", []byte("anchor"), true),
			},
			wantIP:    "192.168.4.16",
			wantInfo:  "anchor",
			wantRange: true,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "pub-2"},
				Port:          4242,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
				Text:          txtRecords("node-b", "General", nil, false),
			},
			wantIP: "fe80::1",
		},
		{
			name: "no service",
			entry: &zeroconf.ServiceEntry{
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				Text:     []string{"path=/"},
			},
			wantNil: true,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				Port: 4242,
				Text: txtRecords("node-a", "General", nil, false),
			},
			wantNil: true,
		},
		{
			name: "bad info",
			entry: &zeroconf.ServiceEntry{
				Port:     4242,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				Text:     []string{"svc=General", "id=node-a", "ssi=!!"},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := parseEntry(tt.entry)
			if tt.wantNil {
				assert.Nil(t, ep)
				return
			}
			require.NotNil(t, ep)
			assert.Equal(t, tt.entry.Instance, ep.Instance)
			assert.Equal(t, "General", ep.Service)
			assert.Equal(t, tt.wantIP, ep.IP)
			assert.Equal(t, tt.wantInfo, string(ep.ServiceSpecificInfo))
			assert.Equal(t, tt.wantRange, ep.Ranging)
		})
	}
}

func TestEndpoint_URL(t *testing.T) {
	assert.Equal(t, "ws://10.0.0.5:4242/nan", (&Endpoint{IP: "10.0.0.5", Port: 4242}).URL())
	assert.Equal(t, "ws://[fe80::1]:4242/nan", (&Endpoint{IP: "fe80::1", Port: 4242}).URL())
}

// directory is an in-process stand-in for multicast DNS.
type directory struct {
	mu      sync.Mutex
	entries map[string]*zeroconf.ServiceEntry
}

func newDirectory() *directory {
	return &directory{entries: make(map[string]*zeroconf.ServiceEntry)}
}

func (d *directory) Register(instance string, port int, txt []string) (func(), error) {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	entry.Port = port
	entry.AddrIPv4 = []net.IP{net.IPv4(127, 0, 0, 1)}
	entry.Text = txt

	d.mu.Lock()
	d.entries[instance] = entry
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.entries, instance)
		d.mu.Unlock()
	}, nil
}

func (d *directory) Browse(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
	d.mu.Lock()
	var list []*zeroconf.ServiceEntry
	for _, e := range d.entries {
		list = append(list, e)
	}
	d.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Instance < list[j].Instance })

	for _, e := range list {
		select {
		case entries <- e:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func TestScanner_Scan(t *testing.T) {
	dir := newDirectory()
	_, err := dir.Register("b", 2, txtRecords("n", "General", nil, false))
	require.NoError(t, err)
	_, err = dir.Register("a", 1, txtRecords("n", "General", nil, false))
	require.NoError(t, err)

	scanner := NewScanner(dir)
	scanner.Timeout = 20 * time.Millisecond
	endpoints, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "a", endpoints[0].Instance)
	assert.Equal(t, "b", endpoints[1].Instance)
}

func newTestRadio(name string, dir *directory) *Radio {
	return New(name,
		WithListenAddr("127.0.0.1:0"),
		WithAdvertiser(dir),
		WithBrowser(dir),
		WithScanTimeout(30*time.Millisecond),
		WithProbeTimeout(time.Second),
	)
}

func attach(t *testing.T, r *Radio) radio.Attachment {
	t.Helper()
	type result struct {
		att radio.Attachment
		err error
	}
	ch := make(chan result, 1)
	r.Attach(func(att radio.Attachment, err error) { ch <- result{att, err} })
	res := <-ch
	require.NoError(t, res.err)
	t.Cleanup(func() { _ = res.att.Close() })
	return res.att
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

func TestRadio_MessagingAndRanging(t *testing.T) {
	dir := newDirectory()
	anchor := newTestRadio("anchor", dir)
	walker := newTestRadio("walker", dir)

	pubEvents := attach(t, anchor).Publish(radio.PublishConfig{
		ServiceName:         "General",
		ServiceSpecificInfo: []byte("anchor"),
		RangingEnabled:      true,
	})
	pub := next(t, pubEvents).(radio.Started).Session
	assert.NotZero(t, anchor.Port())

	subEvents := attach(t, walker).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	sub := next(t, subEvents).(radio.Started).Session

	found, ok := next(t, subEvents).(radio.PeerDiscovered)
	require.True(t, ok)
	assert.Equal(t, "anchor", string(found.ServiceSpecificInfo))

	sub.SendMessage(found.Peer, 5, []byte("walker|1|1"))
	assert.Equal(t, radio.SendResult{MessageID: 5, Succeeded: true}, next(t, subEvents))

	got, ok := next(t, pubEvents).(radio.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "walker|1|1", string(got.Payload))

	pub.SendMessage(got.Peer, 6, []byte("anchor|11|11"))
	assert.Equal(t, radio.SendResult{MessageID: 6, Succeeded: true}, next(t, pubEvents))
	reply, ok := next(t, subEvents).(radio.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, found.Peer, reply.Peer)

	results := make(chan []radio.RangingResult, 1)
	walker.StartRanging(radio.RangingRequest{Peers: []radio.PeerHandle{found.Peer, 99}}, radio.RangingFuncs{
		Results: func(res []radio.RangingResult) { results <- res },
	})
	select {
	case res := <-results:
		require.Len(t, res, 2)
		assert.True(t, res[0].Succeeded())
		assert.Equal(t, -1, res[0].DistanceMm)
		assert.Greater(t, res[0].RTT, time.Duration(0))
		assert.Equal(t, radio.StatusFail, res[1].Status)
	case <-time.After(timeout):
		t.Fatal("no ranging results")
	}

	require.NoError(t, pub.Close())
	assert.Equal(t, radio.PeerLost{Peer: found.Peer}, next(t, subEvents))
}

func TestRadio_UnavailableTerminates(t *testing.T) {
	dir := newDirectory()
	r := newTestRadio("solo", dir)
	events := attach(t, r).Subscribe(radio.SubscribeConfig{ServiceName: "General"})
	next(t, events)

	r.SetAvailable(false)
	assert.Equal(t, radio.Terminated{}, next(t, events))
	<-r.StateChanges()
	assert.Zero(t, r.Port())

	failures := make(chan int, 1)
	r.StartRanging(radio.RangingRequest{Peers: []radio.PeerHandle{1}}, radio.RangingFuncs{
		Failure: func(code int) { failures <- code },
	})
	assert.Equal(t, radio.FailureCodeRTTNotAvailable, <-failures)

	errs := make(chan error, 1)
	r.Attach(func(_ radio.Attachment, err error) { errs <- err })
	assert.ErrorIs(t, <-errs, ErrUnavailable)
}

package app

import (
	"errors"

	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/protocol"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

func (n *Node) OnInvalidService() { n.record("Invalid service %q", n.cfg.Service) }

func (n *Node) OnAttachedFailed() { n.record("Attach failed") }

func (n *Node) OnNanAvailable() { n.record("Radio available") }

func (n *Node) OnNanUnavailable() { n.record("Radio unavailable") }

func (n *Node) OnPublishStarted(service string) {
	n.record("Publish started")
	if err := n.client.EnableRanging(service, n); err != nil {
		n.record("Enable ranging failed: %v", err)
	}
}

func (n *Node) OnSubscribeStarted(string) { n.record("Subscribe started") }

func (n *Node) OnRangingEnabled(string) { n.record("Ranging enabled") }

func (n *Node) OnRangingDisabled(string) { n.record("Ranging disabled") }

// OnSessionTerminated forgets every peer. Peer handles are only meaningful
// within the session that issued them.
func (n *Node) OnSessionTerminated(mode radio.Mode, _ string) {
	n.mu.Lock()
	n.stopLinksLocked()
	n.mu.Unlock()
	n.tracker.Clear()
	n.record("%s session terminated", mode)
}

func (n *Node) OnServiceDiscovered(service string, peer radio.PeerHandle, _ []byte, _ [][]byte) {
	n.record("Service discovered: peer %d", peer)
	n.send(radio.SubscribeMode, service, peer, protocol.NameRequest, protocol.NameRequest.String())
}

func (n *Node) OnServiceLost(_ string, peer radio.PeerHandle) {
	n.drop(peer, "lost")
}

func (n *Node) OnMessageSendSucceeded(radio.Mode, string, int) {
	n.mu.Lock()
	n.counters.Sent++
	n.mu.Unlock()
}

func (n *Node) OnMessageSendFailed(_ radio.Mode, _ string, id int) {
	n.mu.Lock()
	n.counters.SendFailed++
	n.mu.Unlock()
	n.record("Message %d send failed", id)
}

func (n *Node) OnMessageReceived(mode radio.Mode, service string, peer radio.PeerHandle, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		malformedMessages.WithLabelValues().Inc()
		n.mu.Lock()
		n.counters.Malformed++
		n.mu.Unlock()
		var fe *protocol.FormatError
		if errors.As(err, &fe) {
			logging.Debug("Malformed message", zap.Int("peer", int(peer)), zap.Error(fe))
		}
		return
	}

	n.mu.Lock()
	n.counters.Received++
	n.mu.Unlock()

	switch msg.RequestType {
	case protocol.NameRequest:
		n.send(mode, service, peer, protocol.NameRequestAck, protocol.NameRequestAck.String())
		n.addDevice(mode, service, peer, msg.DeviceName)
	case protocol.NameRequestAck:
		n.addDevice(mode, service, peer, msg.DeviceName)
	case protocol.Ping:
		n.send(mode, service, peer, protocol.PingAck, protocol.PingAck.String())
		n.tracker.CheckIn(peer)
	case protocol.PingAck:
		n.tracker.CheckIn(peer)
	case protocol.Chat:
		n.mu.Lock()
		n.chats = append(n.chats, Chat{From: msg.DeviceName, Peer: peer, Text: msg.Body, At: n.clock.Now()})
		if len(n.chats) > maxChats {
			n.chats = n.chats[len(n.chats)-maxChats:]
		}
		n.mu.Unlock()
		n.record("Chat from %s: %s", msg.DeviceName, msg.Body)
	default:
		n.record("Cannot identify request type %s", msg.RequestType)
	}
}

// addDevice tracks a peer that completed the handshake and starts its
// liveness loop: subscribers ping, publishers only watch.
func (n *Node) addDevice(mode radio.Mode, service string, peer radio.PeerHandle, name string) {
	d, added := n.tracker.Add(name, peer, service)
	if !added {
		return
	}
	handshakes.WithLabelValues(mode.String()).Inc()
	n.record("Device added: %s", d)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if old, ok := n.links[peer]; ok {
		old.timer.Stop()
	}
	l := &link{mode: mode}
	n.links[peer] = l
	if mode == radio.SubscribeMode {
		l.timer = n.clock.AfterFunc(0, func() { n.ping(peer, l) })
	} else {
		l.timer = n.clock.AfterFunc(n.cfg.PingInterval, func() { n.watch(peer, l) })
	}
}

func (n *Node) ping(peer radio.PeerHandle, l *link) {
	if !n.alive(peer, l) {
		return
	}
	n.send(radio.SubscribeMode, n.cfg.Service, peer, protocol.Ping, protocol.Ping.String())
	n.rearm(peer, l, func() { n.ping(peer, l) })
}

func (n *Node) watch(peer radio.PeerHandle, l *link) {
	if !n.alive(peer, l) {
		return
	}
	n.rearm(peer, l, func() { n.watch(peer, l) })
}

// alive reports whether l is still the loop of a live peer, dropping the
// peer once it has timed out.
func (n *Node) alive(peer radio.PeerHandle, l *link) bool {
	n.mu.Lock()
	current := n.links[peer] == l
	n.mu.Unlock()
	if !current {
		return false
	}
	if !n.tracker.Alive(peer) {
		devicesDropped.WithLabelValues("timeout").Inc()
		n.mu.Lock()
		if n.links[peer] == l {
			delete(n.links, peer)
		}
		n.mu.Unlock()
		n.record("Device removed: peer %d", peer)
		return false
	}
	return true
}

func (n *Node) rearm(peer radio.PeerHandle, l *link, f func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.links[peer] == l {
		l.timer = n.clock.AfterFunc(n.cfg.PingInterval, f)
	}
}

func (n *Node) drop(peer radio.PeerHandle, reason string) {
	n.mu.Lock()
	if l, ok := n.links[peer]; ok {
		l.timer.Stop()
		delete(n.links, peer)
	}
	n.mu.Unlock()
	if n.tracker.Remove(peer) {
		devicesDropped.WithLabelValues(reason).Inc()
		n.record("Device removed: peer %d (%s)", peer, reason)
	}
}

// PeerHandles implements ranging.ContinuousCallback.
func (n *Node) PeerHandles() []radio.PeerHandle {
	if !n.cfg.Ranging {
		return nil
	}
	return n.tracker.Handles()
}

// OnRangingResults implements ranging.ContinuousCallback.
func (n *Node) OnRangingResults(results []radio.RangingResult) {
	n.mu.Lock()
	n.counters.RangingRounds++
	n.mu.Unlock()

	for _, res := range results {
		if !res.Succeeded() {
			logging.Debug("Ranging failed for peer", zap.Int("peer", int(res.Peer)), zap.Int("status", res.Status))
			continue
		}
		if res.DistanceMm < 0 {
			logging.Debug("Round trip without distance", zap.Int("peer", int(res.Peer)), zap.Duration("rtt", res.RTT))
			continue
		}
		n.tracker.SetDistance(res.Peer, res.DistanceMm)
	}
	n.computeLocation()
}

// OnRangingFailure implements ranging.ContinuousCallback.
func (n *Node) OnRangingFailure(code int) {
	n.mu.Lock()
	n.counters.RangingFailures++
	n.mu.Unlock()
	n.record("Ranging failed: %d", code)
}

func (n *Node) computeLocation() {
	obs := n.tracker.Observations()
	res, err := locate.Trilaterate(obs)
	if err != nil {
		logging.Debug("Not enough positions for computing location", zap.Int("anchors", len(obs)), zap.Error(err))
		return
	}
	positionError.WithLabelValues().Observe(res.RMSErrorMm)

	n.mu.Lock()
	n.position = &res
	n.mu.Unlock()
	logging.Debug("Position computed", zap.Stringer("position", res.Position), zap.Float64("rms_mm", res.RMSErrorMm))
}

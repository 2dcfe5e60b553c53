// Package sim is an in-memory discovery and ranging radio.
//
// An Air holds any number of Radios at positions on a plane. Sessions
// opened on one radio see the matching sessions of the others:
//
//	air := sim.NewAir(sim.WithNoise(50, 1))
//	anchor := air.NewRadio("anchor-1", locate.Point{X: 0, Y: 0})
//	walker := air.NewRadio("walker", locate.Point{X: 3000, Y: 4000})
//
// A subscriber discovers every publisher of the same service name on
// another radio whose match filter agrees. Peer handles are issued per
// observing radio. Messages are delivered in order with a SendResult for
// the sender. Ranging reports the Euclidean distance between the radios,
// plus optional noise, for publishers that enabled ranging.
//
// Failures can be injected with FailNextAttach, FailNextRanging and
// SetAvailable. All radio answers arrive asynchronously.
package sim

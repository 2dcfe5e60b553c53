// Package lan is a discovery and ranging radio over the local network.
//
// Publish sessions are advertised as mDNS instances of ServiceType with TXT
// records naming the service, the radio, the service specific info and
// whether ranging is enabled. Subscribe sessions browse in windows of
// DefaultScanTimeout and report a publisher lost once it has been missing
// for two windows.
//
// Every attached radio runs a WebSocket endpoint. Messages travel as JSON
// envelopes addressed from one session instance to another; a reply goes
// back over the link the message arrived on, so subscribers need no
// advertisement of their own.
//
// Ranging sends WebSocket pings and reports the mean round trip. The network
// adds far more delay than flight time, so DistanceMm is always -1.
package lan

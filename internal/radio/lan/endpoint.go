package lan

import (
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// TXT record keys of an advertised publish session.
const (
	txtService = "svc"
	txtNode    = "id"
	txtInfo    = "ssi"
	txtRanging = "rng"
)

// Endpoint is a publish session seen on the network.
type Endpoint struct {
	// Instance is the mDNS instance name, unique per publish session.
	Instance string

	// Node is the id of the radio that runs the session.
	Node string

	// Service is the published service name.
	Service string

	Host string
	IP   string
	Port int

	// ServiceSpecificInfo is the publisher's opaque payload.
	ServiceSpecificInfo []byte

	// Ranging is set when the publisher answers ranging probes.
	Ranging bool

	DiscoveredAt time.Time
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s service %q on %s at %s", e.Instance, e.Service, e.Node, net.JoinHostPort(e.IP, strconv.Itoa(e.Port)))
}

// URL returns the WebSocket address of the endpoint's radio.
func (e *Endpoint) URL() string {
	return "ws://" + net.JoinHostPort(e.IP, strconv.Itoa(e.Port)) + socketPath
}

func txtRecords(node, service string, info []byte, ranging bool) []string {
	rng := "0"
	if ranging {
		rng = "1"
	}
	return []string{
		txtService + "=" + service,
		txtNode + "=" + node,
		txtInfo + "=" + base64.RawStdEncoding.EncodeToString(info),
		txtRanging + "=" + rng,
	}
}

// parseEntry converts a browse result into an Endpoint. It returns nil for
// entries that are not nanrtt sessions or have no usable address.
func parseEntry(entry *zeroconf.ServiceEntry) *Endpoint {
	txt := make(map[string]string)
	for _, record := range entry.Text {
		key, value, _ := strings.Cut(record, "=")
		txt[key] = value
	}

	service, ok := txt[txtService]
	if !ok || service == "" || txt[txtNode] == "" {
		return nil
	}
	info, err := base64.RawStdEncoding.DecodeString(txt[txtInfo])
	if err != nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	if len(info) == 0 {
		info = nil
	}
	return &Endpoint{
		Instance:            entry.Instance,
		Node:                txt[txtNode],
		Service:             service,
		Host:                entry.HostName,
		IP:                  ip,
		Port:                entry.Port,
		ServiceSpecificInfo: info,
		Ranging:             txt[txtRanging] == "1",
		DiscoveredAt:        time.Now(),
	}
}

package lan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type of nanrtt publish sessions.
	ServiceType = "_nanrtt._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DefaultScanTimeout is how long one browse window lasts.
	DefaultScanTimeout = 3 * time.Second
)

// Advertiser publishes an mDNS service instance until shutdown is called.
type Advertiser interface {
	Register(instance string, port int, txt []string) (shutdown func(), err error)
}

// Browser streams the instances of ServiceType into entries until ctx is
// done.
type Browser interface {
	Browse(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error
}

// Zeroconf is the multicast DNS implementation of Advertiser and Browser.
type Zeroconf struct{}

// Register implements Advertiser.
func (Zeroconf) Register(instance string, port int, txt []string) (func(), error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service %s: %w", instance, err)
	}
	return server.Shutdown, nil
}

// Browse implements Browser.
func (Zeroconf) Browse(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Scanner collects the endpoints visible during one browse window.
type Scanner struct {
	Browser Browser

	// Timeout is the length of the browse window.
	Timeout time.Duration
}

// NewScanner creates a scanner over b with the default window.
func NewScanner(b Browser) *Scanner {
	return &Scanner{
		Browser: b,
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for one window and returns the endpoints seen, sorted by
// instance name.
func (s *Scanner) Scan(ctx context.Context) ([]*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	seen := make(map[string]*Endpoint)
	stop := make(chan struct{})
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if ep := parseEntry(entry); ep != nil {
					seen[ep.Instance] = ep
				}
			case <-stop:
				return
			}
		}
	}()

	err := s.Browser.Browse(ctx, entries)
	if err == nil {
		<-ctx.Done()
	}
	close(stop)
	<-collected
	if err != nil {
		return nil, err
	}

	endpoints := make([]*Endpoint, 0, len(seen))
	for _, ep := range seen {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Instance < endpoints[j].Instance })
	return endpoints, nil
}

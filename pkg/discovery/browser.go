package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// Browse searches for driver services. The returned channel yields
	// each service once, with addresses from all interfaces merged, and
	// is closed when the context is done.
	Browse(ctx context.Context) (<-chan *ServiceRecord, error)
}

// FilterFunc is a function that filters browse results.
type FilterFunc func(*ServiceRecord) bool

// FilterByClass returns a filter that matches services of the given class.
func FilterByClass(class string) FilterFunc {
	return func(r *ServiceRecord) bool {
		return r.Class == class
	}
}

// FilterByHub returns a filter that matches services of the given hub.
func FilterByHub(hub string) FilterFunc {
	return func(r *ServiceRecord) bool {
		return r.Hub == hub
	}
}

// FilterBrowseResults filters a channel of service records.
func FilterBrowseResults(in <-chan *ServiceRecord, filter FilterFunc) <-chan *ServiceRecord {
	out := make(chan *ServiceRecord)
	go func() {
		defer close(out)
		for r := range in {
			if filter(r) {
				out <- r
			}
		}
	}()
	return out
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{
		config: config,
	}, nil
}

// Browse searches for driver services. Services are aggregated by instance
// name - addresses from multiple interfaces are combined into a single
// entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *ServiceRecord, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	out := make(chan *ServiceRecord)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*ServiceRecord)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				r := entryToRecord(entry)
				if r == nil {
					continue
				}
				if existing, found := services[r.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, r.Addresses)
					continue
				}
				services[r.InstanceName] = r
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(services, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToRecord converts a zeroconf entry to a ServiceRecord.
func entryToRecord(entry *zeroconf.ServiceEntry) *ServiceRecord {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return recordFromTXT(entry.Instance, entry.HostName, entry.Port, addrs, entry.Text)
}

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)

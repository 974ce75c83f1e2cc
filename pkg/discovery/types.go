package discovery

import (
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type for driver services.
	ServiceType = "_sensorlink._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is advertised when no port is configured. Dispatch does
	// not travel over the network, the port only satisfies DNS-SD.
	DefaultPort = 5683

	// ProtocolVersion is advertised in the ver TXT key.
	ProtocolVersion = "1"
)

// TXT record key constants.
const (
	TXTKeyService = "svc" // Service name
	TXTKeyClass   = "cls" // Device class
	TXTKeyHub     = "hub" // Hub id
	TXTKeyVersion = "ver" // Protocol version (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 3 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrTXTTooLarge         = errors.New("TXT records exceed size limit")
	ErrNotFound            = errors.New("service not found")
)

// ServiceInfo describes one advertised driver service.
type ServiceInfo struct {
	// Hub identifies the advertising process.
	Hub string

	// Name is the service name callers bind.
	Name string

	// Class is the device class the service belongs to.
	Class string

	// Port is the advertised port (0 uses DefaultPort).
	Port uint16
}

// ServiceRecord is a service found while browsing.
type ServiceRecord struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertising host name.
	Host string

	// Port is the advertised port.
	Port uint16

	// Addresses are the IP addresses the service was seen on.
	Addresses []string

	// Hub, Name, Class and Version come from the TXT records.
	Hub     string
	Name    string
	Class   string
	Version string
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to advertise on.
	// Empty string means all interfaces.
	Interface string

	// TTL is the record time-to-live. Zero uses the zeroconf default.
	TTL time.Duration

	// Port is advertised for every service (0 uses DefaultPort).
	Port uint16
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		TTL:  120 * time.Second,
		Port: DefaultPort,
	}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds class queries made through MDNSDirectory.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

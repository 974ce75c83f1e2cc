package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
)

// Advertiser announces driver services on the local network.
type Advertiser interface {
	// Advertise starts advertising one service. Advertising a name again
	// replaces the previous announcement.
	Advertise(ctx context.Context, info *ServiceInfo) error

	// Withdraw stops advertising the named service.
	Withdraw(name string) error

	// StopAll stops all advertisements.
	StopAll()
}

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu sync.Mutex

	// Active servers keyed by service name
	servers map[string]*zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}, nil
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising a driver service.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *ServiceInfo) error {
	instanceName := InstanceName(info.Hub, info.Name)
	if err := ValidateInstanceName(instanceName); err != nil {
		return err
	}

	txtStrings := TXTRecordsToStrings(EncodeServiceTXT(info))
	if err := ValidateTXTSize(txtStrings); err != nil {
		return err
	}

	// Determine port
	port := int(info.Port)
	if port == 0 {
		port = int(a.config.Port)
	}
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if server, exists := a.servers[info.Name]; exists {
		server.Shutdown()
		delete(a.servers, info.Name)
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceType,
		Domain,
		port,
		txtStrings,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service %q: %w", info.Name, err)
	}

	a.servers[info.Name] = server
	return nil
}

// AdvertiseClass advertises every service of class listed by dir and
// returns how many were announced.
func (a *MDNSAdvertiser) AdvertiseClass(ctx context.Context, dir driver.Directory, hub, class string) (int, error) {
	reply := pbuf.ObtainDefault()
	defer reply.Recycle()

	if err := dir.QueryClass(ctx, class, reply); err != nil {
		return 0, err
	}

	n := 0
	for {
		name, ok := reply.ReadString()
		if !ok {
			break
		}
		if err := a.Advertise(ctx, &ServiceInfo{Hub: hub, Name: name, Class: class}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Withdraw stops advertising the named service.
func (a *MDNSAdvertiser) Withdraw(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[name]
	if !exists {
		return ErrNotFound
	}

	server.Shutdown()
	delete(a.servers, name)
	return nil
}

// Advertised returns the number of active announcements.
func (a *MDNSAdvertiser) Advertised() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.servers)
}

// StopAll stops all advertisements.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, server := range a.servers {
		server.Shutdown()
		delete(a.servers, name)
	}
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

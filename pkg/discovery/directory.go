package discovery

import (
	"context"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/driver"
	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// MDNSDirectory answers class queries by browsing for advertised services.
type MDNSDirectory struct {
	browser Browser
	timeout time.Duration

	// Hub restricts results to one hub when set.
	Hub string
}

// NewMDNSDirectory creates a directory that browses with b for at most
// timeout per query.
func NewMDNSDirectory(b Browser, timeout time.Duration) *MDNSDirectory {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	return &MDNSDirectory{browser: b, timeout: timeout}
}

// QueryClass browses until the timeout expires or ctx is done, then writes
// the names of all services of class in the order they were first seen.
func (d *MDNSDirectory) QueryClass(ctx context.Context, class string, reply *pbuf.PBuf) error {
	if reply == nil {
		return wire.Errorf(wire.StatusNullPointer, "nil reply buffer")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results, err := d.browser.Browse(ctx)
	if err != nil {
		return err
	}
	results = FilterBrowseResults(results, FilterByClass(class))
	if d.Hub != "" {
		results = FilterBrowseResults(results, FilterByHub(d.Hub))
	}

	seen := make(map[string]bool)
	var names []string
	for r := range results {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}

	for _, name := range names {
		if !reply.WriteString(name) {
			return wire.Errorf(wire.StatusIO, "reply buffer full at %q", name)
		}
	}
	return nil
}

// Ensure MDNSDirectory implements driver.Directory.
var _ driver.Directory = (*MDNSDirectory)(nil)

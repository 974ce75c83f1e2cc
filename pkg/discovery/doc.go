// Package discovery advertises and enumerates driver services over
// mDNS/DNS-SD.
//
// A hub advertises one instance of the _sensorlink._udp service type per
// published driver service. The instance name is "<hub>-<service>".
//
// # TXT Records
//
//   - svc: the service name a Binder resolves (required)
//   - cls: the device class, e.g. "sensor" (required)
//   - hub: the advertising hub's id (required)
//   - ver: the dispatch protocol version (optional)
//
// # Directory
//
// MDNSDirectory implements driver.Directory on top of a Browser: a class
// query browses for the configured timeout and writes the names of all
// services of that class, in the order they were first seen.
package discovery

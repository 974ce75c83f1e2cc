package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeServiceTXT creates TXT records for a driver service.
func EncodeServiceTXT(info *ServiceInfo) TXTRecordMap {
	return TXTRecordMap{
		TXTKeyService: info.Name,
		TXTKeyClass:   info.Class,
		TXTKeyHub:     info.Hub,
		TXTKeyVersion: ProtocolVersion,
	}
}

// DecodeServiceTXT parses TXT records of a driver service. The version is
// returned separately since ServiceInfo does not carry it.
func DecodeServiceTXT(txt TXTRecordMap) (*ServiceInfo, string, error) {
	info := &ServiceInfo{}
	var ok bool

	if info.Name, ok = txt[TXTKeyService]; !ok || info.Name == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyService)
	}
	if info.Class, ok = txt[TXTKeyClass]; !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyClass)
	}
	if info.Hub, ok = txt[TXTKeyHub]; !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyHub)
	}
	return info, txt[TXTKeyVersion], nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateTXTSize checks the encoded size of the records.
func ValidateTXTSize(strs []string) error {
	total := 0
	for _, s := range strs {
		total += len(s) + 1
	}
	if total > MaxTXTRecordSize {
		return ErrTXTTooLarge
	}
	return nil
}

// InstanceName builds the mDNS instance name for a service.
func InstanceName(hub, service string) string {
	name := service
	if hub != "" {
		name = hub + "-" + service
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

// recordFromTXT builds a ServiceRecord from the parts of a browse entry.
// It returns nil when the TXT records do not describe a driver service.
func recordFromTXT(instance, host string, port int, addrs, text []string) *ServiceRecord {
	info, version, err := DecodeServiceTXT(StringsToTXTRecords(text))
	if err != nil {
		return nil
	}
	return &ServiceRecord{
		InstanceName: instance,
		Host:         host,
		Port:         uint16(port),
		Addresses:    addrs,
		Hub:          info.Hub,
		Name:         info.Name,
		Class:        info.Class,
		Version:      version,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

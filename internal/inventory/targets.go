package inventory

import (
	"fmt"
	"net/netip"
	"strings"
)

// MaxExpandedHosts bounds the addresses a single CIDR or range entry may expand to.
const MaxExpandedHosts = 4096

// EntryKind classifies a hosts file entry.
type EntryKind string

const (
	EntryCIDR  EntryKind = "cidr"
	EntryRange EntryKind = "range"
	EntryHost  EntryKind = "host"
)

// Classify reports whether entry is a CIDR block, an address range ("start-end") or a
// single host. Hostnames and malformed values are treated as single hosts and left to
// device validation.
func Classify(entry string) EntryKind {
	entry = strings.TrimSpace(entry)

	if strings.Contains(entry, "/") {
		if _, err := netip.ParsePrefix(entry); err == nil {
			return EntryCIDR
		}
	}
	if start, end, ok := strings.Cut(entry, "-"); ok {
		_, errStart := netip.ParseAddr(strings.TrimSpace(start))
		_, errEnd := netip.ParseAddr(strings.TrimSpace(end))
		if errStart == nil && errEnd == nil {
			return EntryRange
		}
	}
	return EntryHost
}

// ExpandHosts expands CIDR and range entries into individual addresses. Order follows the
// input, and each block expands in ascending address order. Duplicates are kept.
func ExpandHosts(entries []string) ([]string, error) {
	hosts := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)

		var (
			expanded []string
			err      error
		)
		switch Classify(entry) {
		case EntryCIDR:
			expanded, err = expandCIDR(entry)
		case EntryRange:
			expanded, err = expandRange(entry)
		default:
			expanded = []string{entry}
		}
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, expanded...)
	}
	return hosts, nil
}

// expandCIDR lists the usable addresses of a block. IPv4 network and broadcast addresses
// are skipped except for /31 and /32.
func expandCIDR(cidr string) ([]string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 12 {
		return nil, fmt.Errorf("CIDR block %s exceeds %d hosts", cidr, MaxExpandedHosts)
	}

	trimEnds := prefix.Addr().Is4() && prefix.Bits() < 31

	var hosts []string
	for addr := prefix.Addr(); addr.IsValid() && prefix.Contains(addr); addr = addr.Next() {
		hosts = append(hosts, addr.String())
	}
	if trimEnds && len(hosts) >= 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

func expandRange(entry string) ([]string, error) {
	startText, endText, _ := strings.Cut(entry, "-")
	start, err := netip.ParseAddr(strings.TrimSpace(startText))
	if err != nil {
		return nil, fmt.Errorf("invalid range start in %q: %w", entry, err)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(endText))
	if err != nil {
		return nil, fmt.Errorf("invalid range end in %q: %w", entry, err)
	}
	if start.Is4() != end.Is4() {
		return nil, fmt.Errorf("range %q mixes IPv4 and IPv6", entry)
	}
	if start.Compare(end) > 0 {
		return nil, fmt.Errorf("range %q: start is after end", entry)
	}

	var hosts []string
	for addr := start; ; addr = addr.Next() {
		if len(hosts) == MaxExpandedHosts {
			return nil, fmt.Errorf("range %q exceeds %d hosts", entry, MaxExpandedHosts)
		}
		hosts = append(hosts, addr.String())
		if addr == end {
			return hosts, nil
		}
	}
}

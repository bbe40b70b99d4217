// Package privacy masks personal data before it reaches logs.
package privacy

import "net/netip"

const (
	ipv4KeepBits = 24
	ipv6KeepBits = 48
)

// AnonymizeIP keeps the /24 of an IPv4 address and the /48 of an IPv6 address.
// It returns "unknown" for an empty input and "invalid" when ip does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := ipv6KeepBits
	if addr.Is4() {
		bits = ipv4KeepBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

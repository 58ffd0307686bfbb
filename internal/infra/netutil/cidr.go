package netutil

import (
	"net"
)

// MustParseCIDRs parses CIDR strings into []*net.IPNet; invalid entries are ignored.
// A bare IP is treated as a single-host network.
func MustParseCIDRs(cidrs []string) (out []*net.IPNet) {
	for _, s := range cidrs {
		if ip := net.ParseIP(s); ip != nil {
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err == nil && n != nil {
			out = append(out, n)
		}
	}
	return
}

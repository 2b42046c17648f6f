package config

import (
	"net"
	"strings"
)

// vpnNameHints are interface-name fragments that indicate a tunnel: tun/tap
// (OpenVPN and friends), wg (WireGuard), ppp, warp (Cloudflare).
var vpnNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// cgnatBlock is 100.64.0.0/10. Cloudflare WARP, Tailscale, and carrier grade
// NATs hand out addresses from it; host candidates from inside rarely pair.
var cgnatBlock = mustCIDR("100.64.0.0/10")

// ShouldForceRelay reports whether the host looks like it sits behind a VPN
// or CGNAT, where direct ICE usually fails and TURN relaying is worth
// forcing when a TURN server is available.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) || hasCGNATAddress(iface) {
			return true
		}
	}
	return false
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range vpnNameHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func hasCGNATAddress(iface net.Interface) bool {
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if cgnatBlock.Contains(ip) {
			return true
		}
	}
	return false
}

func mustCIDR(cidr string) *net.IPNet {
	_, block, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return block
}

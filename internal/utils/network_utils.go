package utils

import (
	"net"
	"strings"
)

// cgnatBlock covers carrier-grade NAT and overlay networks such as
// Cloudflare WARP and Tailscale.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

var tunnelNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// NetInterface is the part of a network interface the relay heuristic reads.
type NetInterface struct {
	Name  string
	Up    bool
	Loop  bool
	Addrs []net.IP
}

// ShouldForceRelay reports whether the host looks like it sits behind a VPN
// or CGNAT, where direct peer-to-peer media rarely connects and calls should
// go through TURN.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	list := make([]NetInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		ni := NetInterface{
			Name: iface.Name,
			Up:   iface.Flags&net.FlagUp != 0,
			Loop: iface.Flags&net.FlagLoopback != 0,
		}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					ni.Addrs = append(ni.Addrs, v.IP)
				case *net.IPAddr:
					ni.Addrs = append(ni.Addrs, v.IP)
				}
			}
		}
		list = append(list, ni)
	}
	return LooksTunneled(list)
}

// LooksTunneled applies the VPN/CGNAT heuristic to a list of interfaces.
func LooksTunneled(ifaces []NetInterface) bool {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loop {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, hint := range tunnelNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, ip := range iface.Addrs {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}

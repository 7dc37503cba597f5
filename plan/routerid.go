package plan

import (
	"github.com/zinrai/seedplan/topology"
)

// RouterID returns the router ID for a node: the address of its first
// interface on a local network, else of its first interface.
// Returns "" for a node without interfaces.
func RouterID(n *topology.Node) string {
	ifaces := n.Interfaces()
	for _, iface := range ifaces {
		if iface.Network().Type() == topology.NetworkLocal {
			return iface.Address().String()
		}
	}
	if len(ifaces) > 0 {
		return ifaces[0].Address().String()
	}
	return ""
}

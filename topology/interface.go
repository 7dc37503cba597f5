package topology

import (
	"fmt"
	"net/netip"
)

// Interface attaches a node to one network.
type Interface struct {
	net  *Network
	addr netip.Addr
	link LinkProperties
}

func newInterface(net *Network, addr netip.Addr) *Interface {
	return &Interface{
		net:  net,
		addr: addr,
		link: net.DefaultLinkProperties(),
	}
}

func (i *Interface) Network() *Network   { return i.net }
func (i *Interface) Address() netip.Addr { return i.addr }

// Prefix returns the address with the network's prefix length.
func (i *Interface) Prefix() netip.Prefix {
	return netip.PrefixFrom(i.addr, i.net.Prefix().Bits())
}

func (i *Interface) LinkProperties() LinkProperties { return i.link }

// SetLinkProperties overrides the properties inherited from the network.
func (i *Interface) SetLinkProperties(lp LinkProperties) error {
	if err := lp.Validate(); err != nil {
		return fmt.Errorf("interface on %s: %w", i.net.Name(), err)
	}
	i.link = lp
	return nil
}

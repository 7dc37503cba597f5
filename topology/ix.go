package topology

import (
	"fmt"
	"net/netip"

	"github.com/zinrai/seedplan/registry"
)

// InternetExchange is a peering LAN in the exchange scope, plus the route
// server that sits on it.
type InternetExchange struct {
	id  int
	lan *Network
	rs  *Node
}

// IXNetworkName returns the peering LAN name of exchange id.
func IXNetworkName(id int) string {
	return fmt.Sprintf("ix%d", id)
}

func newInternetExchange(reg *registry.Registry, id int, prefix string) (*InternetExchange, error) {
	name := IXNetworkName(id)

	var (
		p   netip.Prefix
		err error
	)
	if prefix == "" || prefix == AutoAddress {
		if id < 0 || id > MaxAutoSubnetASN {
			return nil, fmt.Errorf("%s: id above %d: %w", name, MaxAutoSubnetASN, ErrAutoSubnetUnavailable)
		}
		p = netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(id), 0, 0}), 24)
	} else if p, err = ParsePrefix(prefix); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	lan, err := NewNetwork(name, NetworkInternetExchange, p, ASNConstraint{})
	if err != nil {
		return nil, err
	}
	if _, err := reg.Register(registry.ScopeIX, registry.TypeNetwork, name, lan); err != nil {
		return nil, err
	}

	rs := NewNode(name, RoleRouteServer, id, registry.ScopeIX)
	if err := rs.JoinNetwork(name, AutoAddress); err != nil {
		return nil, err
	}
	if _, err := reg.Register(registry.ScopeIX, registry.TypeRouteServer, name, rs); err != nil {
		return nil, err
	}

	return &InternetExchange{id: id, lan: lan, rs: rs}, nil
}

func (ix *InternetExchange) ID() int { return ix.id }

// PeeringLAN returns the shared network members join by the name ix<id>.
func (ix *InternetExchange) PeeringLAN() *Network { return ix.lan }

func (ix *InternetExchange) RouteServer() *Node { return ix.rs }

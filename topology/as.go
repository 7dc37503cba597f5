package topology

import (
	"fmt"
	"net/netip"

	"github.com/zinrai/seedplan/registry"
)

// AutonomousSystem owns the networks and nodes of one ASN.
type AutonomousSystem struct {
	asn     int
	reg     *registry.Scoped
	subnets *SubnetAllocator
}

// NewAutonomousSystem binds AS asn to its scope of reg. Auto subnets are
// only available when asn fits in one octet.
func NewAutonomousSystem(asn int, reg *registry.Registry) *AutonomousSystem {
	as := &AutonomousSystem{
		asn: asn,
		reg: reg.Scoped(registry.ScopeForASN(asn)),
	}
	if s, err := NewSubnetAllocator(asn); err == nil {
		as.subnets = s
	}
	return as
}

func (as *AutonomousSystem) ASN() int { return as.asn }

// CreateNetwork registers a local network. prefix is a CIDR or AutoAddress
// for the next 10.<asn>.<k>.0/24 block. A nil constraint means
// DefaultConstraint.
func (as *AutonomousSystem) CreateNetwork(name, prefix string, c Constraint) (*Network, error) {
	if as.reg.Has(registry.TypeNetwork, name) {
		return nil, fmt.Errorf("as%d: network %s: %w", as.asn, name, registry.ErrExists)
	}

	var (
		p   netip.Prefix
		err error
	)
	if prefix == "" || prefix == AutoAddress {
		if as.subnets == nil {
			return nil, fmt.Errorf("as%d: network %s: asn above %d: %w",
				as.asn, name, MaxAutoSubnetASN, ErrAutoSubnetUnavailable)
		}
		p, err = as.subnets.Next()
	} else {
		p, err = ParsePrefix(prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("as%d: network %s: %w", as.asn, name, err)
	}

	net, err := NewNetwork(name, NetworkLocal, p, c)
	if err != nil {
		return nil, fmt.Errorf("as%d: %w", as.asn, err)
	}
	if _, err := as.reg.Register(registry.TypeNetwork, name, net); err != nil {
		return nil, fmt.Errorf("as%d: %w", as.asn, err)
	}
	return net, nil
}

// GetNetwork returns the local network called name.
func (as *AutonomousSystem) GetNetwork(name string) (*Network, error) {
	obj, err := as.reg.Get(registry.TypeNetwork, name)
	if err != nil {
		return nil, fmt.Errorf("as%d: network %s: %w", as.asn, name, ErrNetworkNotFound)
	}
	return obj.(*Network), nil
}

// Networks returns the local networks in creation order.
func (as *AutonomousSystem) Networks() []*Network {
	return typed[*Network](as.reg.GetByType(registry.TypeNetwork))
}

// CreateRouter registers a new router of the AS.
func (as *AutonomousSystem) CreateRouter(name string) (*Node, error) {
	return as.createNode(name, RoleRouter, registry.TypeRouterNode)
}

// CreateHost registers a new host of the AS. Hosts and routers share one
// namespace.
func (as *AutonomousSystem) CreateHost(name string) (*Node, error) {
	return as.createNode(name, RoleHost, registry.TypeHostNode)
}

// GetRouter returns the router called name.
func (as *AutonomousSystem) GetRouter(name string) (*Node, error) {
	return as.getNode(name, registry.TypeRouterNode)
}

// GetHost returns the host called name.
func (as *AutonomousSystem) GetHost(name string) (*Node, error) {
	return as.getNode(name, registry.TypeHostNode)
}

// Routers returns the routers in creation order.
func (as *AutonomousSystem) Routers() []*Node {
	return typed[*Node](as.reg.GetByType(registry.TypeRouterNode))
}

// Hosts returns the hosts in creation order.
func (as *AutonomousSystem) Hosts() []*Node {
	return typed[*Node](as.reg.GetByType(registry.TypeHostNode))
}

func (as *AutonomousSystem) createNode(name string, role NodeRole, typ registry.Type) (*Node, error) {
	// A router and a host of one AS share the peer lookup namespace.
	for _, t := range []registry.Type{registry.TypeRouterNode, registry.TypeHostNode} {
		if as.reg.Has(t, name) {
			return nil, fmt.Errorf("as%d: node %s: %w", as.asn, name, registry.ErrExists)
		}
	}
	node := NewNode(name, role, as.asn, "")
	if _, err := as.reg.Register(typ, name, node); err != nil {
		return nil, fmt.Errorf("as%d: %w", as.asn, err)
	}
	return node, nil
}

func (as *AutonomousSystem) getNode(name string, typ registry.Type) (*Node, error) {
	obj, err := as.reg.Get(typ, name)
	if err != nil {
		return nil, fmt.Errorf("as%d: %w", as.asn, err)
	}
	return obj.(*Node), nil
}

func typed[T any](objs []any) []T {
	res := make([]T, 0, len(objs))
	for _, o := range objs {
		if v, ok := o.(T); ok {
			res = append(res, v)
		}
	}
	return res
}

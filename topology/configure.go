package topology

import (
	"fmt"
	"net/netip"

	"github.com/zinrai/seedplan/registry"
)

// Registry resolves names into live topology objects. *registry.Registry
// implements it.
type Registry interface {
	Register(scope string, typ registry.Type, name string, obj any) (any, error)
	GetOrRegister(scope string, typ registry.Type, name string, create func() (any, error)) (any, bool, error)
	Get(scope string, typ registry.Type, name string) (any, error)
	Has(scope string, typ registry.Type, name string) bool
	GetByType(scope string, typ registry.Type) []any
}

// Configure resolves every queued declaration into interfaces. It runs once:
// a second call fails with ErrAlreadyConfigured, and a failed call is not
// retryable.
//
// Network joins resolve first, in declaration order, looking the name up in
// the node's scope and then in the exchange scope. Cross-connects resolve
// next: both sides agree on a link network named after the endpoint pair, so
// whichever side is configured first creates it and the other joins it.
func (n *Node) Configure(reg Registry) error {
	if err := n.configureJoins(reg); err != nil {
		return err
	}
	return n.configureCrossConnects(reg)
}

// configureJoins marks the node configured and resolves its network joins.
func (n *Node) configureJoins(reg Registry) error {
	n.mu.Lock()
	if n.configured {
		n.mu.Unlock()
		return fmt.Errorf("%s: %w", n, ErrAlreadyConfigured)
	}
	n.configured = true
	pending := append([]Declaration(nil), n.pending...)
	n.mu.Unlock()

	for _, d := range pending {
		j, ok := d.(NetworkJoin)
		if !ok {
			continue
		}
		if err := n.resolveJoin(reg, j); err != nil {
			return err
		}
	}
	return nil
}

// configureCrossConnects resolves the cross-connects of a node whose joins
// are resolved. Declarations are frozen once the node is configured.
func (n *Node) configureCrossConnects(reg Registry) error {
	for _, d := range n.Declarations() {
		xc, ok := d.(CrossConnect)
		if !ok {
			continue
		}
		if err := n.resolveCrossConnect(reg, xc.key()); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) resolveJoin(reg Registry, j NetworkJoin) error {
	net, err := lookupNetwork(reg, n.scope, j.Network)
	if err != nil {
		return fmt.Errorf("%s: join %s: %w", n, j.Network, err)
	}

	var addr netip.Addr
	if j.Address == AutoAddress {
		addr, err = net.Allocator().Assign(n.role, n.asn)
	} else {
		addr, err = ParseAddr(j.Address)
		if err == nil {
			err = net.Allocator().Claim(addr, n.role)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: join %s: %w", n, j.Network, err)
	}
	n.attach(net, addr)
	return nil
}

func (n *Node) resolveCrossConnect(reg Registry, k xcKey) error {
	n.mu.Lock()
	local := *n.xcs[k]
	n.mu.Unlock()

	peer, err := lookupPeer(reg, k.asn, k.name)
	if err != nil {
		return fmt.Errorf("%s: cross-connect to as%d/%s: %w", n, k.asn, k.name, err)
	}
	remote, err := peer.GetCrossConnect(n.asn, n.name)
	if err != nil {
		return fmt.Errorf("%s: cross-connect to %s: %w", n, peer, err)
	}

	subnet := local.Address.Masked()
	if subnet != remote.Address.Masked() {
		return fmt.Errorf("%s: cross-connect to %s: %s and %s: %w",
			n, peer, local.Address, remote.Address, ErrSubnetMismatch)
	}

	name := CrossConnectNetworkName(n.asn, n.name, k.asn, k.name)
	obj, _, err := reg.GetOrRegister(registry.ScopeXC, registry.TypeNetwork, name, func() (any, error) {
		return NewNetwork(name, NetworkCrossConnect, subnet, nil)
	})
	if err != nil {
		return fmt.Errorf("%s: cross-connect to %s: %w", n, peer, err)
	}
	net, ok := obj.(*Network)
	if !ok {
		return fmt.Errorf("%s: cross-connect to %s: xc/net/%s is %T", n, peer, name, obj)
	}
	if net.Prefix() != subnet {
		return fmt.Errorf("%s: cross-connect to %s: %s is %s, want %s: %w",
			n, peer, name, net.Prefix(), subnet, ErrSubnetMismatch)
	}

	if err := net.Allocator().Claim(local.Address.Addr(), n.role); err != nil {
		return fmt.Errorf("%s: cross-connect to %s: %w", n, peer, err)
	}
	n.attach(net, local.Address.Addr())

	n.mu.Lock()
	n.xcs[k].Network = name
	n.mu.Unlock()
	return nil
}

func (n *Node) attach(net *Network, addr netip.Addr) {
	iface := newInterface(net, addr)

	n.mu.Lock()
	n.interfaces = append(n.interfaces, iface)
	n.mu.Unlock()

	net.Associate(n)
}

// lookupNetwork prefers a network of the node's own scope over an exchange
// network of the same name.
func lookupNetwork(reg Registry, scope, name string) (*Network, error) {
	for _, s := range []string{scope, registry.ScopeIX} {
		if !reg.Has(s, registry.TypeNetwork, name) {
			continue
		}
		obj, err := reg.Get(s, registry.TypeNetwork, name)
		if err != nil {
			return nil, err
		}
		net, ok := obj.(*Network)
		if !ok {
			return nil, fmt.Errorf("%s/net/%s is %T", s, name, obj)
		}
		return net, nil
	}
	return nil, fmt.Errorf("no network %q in scope %s or %s: %w", name, scope, registry.ScopeIX, ErrNetworkNotFound)
}

// lookupPeer finds a router, then a host, in the peer's AS scope.
func lookupPeer(reg Registry, asn int, name string) (*Node, error) {
	scope := registry.ScopeForASN(asn)
	for _, typ := range []registry.Type{registry.TypeRouterNode, registry.TypeHostNode} {
		if !reg.Has(scope, typ, name) {
			continue
		}
		obj, err := reg.Get(scope, typ, name)
		if err != nil {
			return nil, err
		}
		node, ok := obj.(*Node)
		if !ok {
			return nil, fmt.Errorf("%s/%s/%s is %T", scope, typ, name, obj)
		}
		return node, nil
	}
	return nil, fmt.Errorf("no such node: %w", ErrPeerNotFound)
}

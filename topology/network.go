package topology

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
)

// Network is an IPv4 segment that node interfaces attach to.
type Network struct {
	name  string
	typ   NetworkType
	alloc *AddressAllocator

	mu          sync.Mutex
	displayName string
	defaults    LinkProperties
	nodes       []*Node
}

// NewNetwork returns a network over prefix. A nil constraint means
// DefaultConstraint.
func NewNetwork(name string, typ NetworkType, prefix netip.Prefix, c Constraint) (*Network, error) {
	alloc, err := NewAddressAllocator(prefix, c)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", name, err)
	}
	return &Network{
		name:  name,
		typ:   typ,
		alloc: alloc,
	}, nil
}

// ParsePrefix parses a dotted-decimal IPv4 CIDR such as "10.5.0.0/24".
func ParsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%q: %v: %w", s, err, ErrInvalidAddress)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%q: not IPv4: %w", s, ErrInvalidAddress)
	}
	return p, nil
}

// ParseAddr parses a dotted-decimal IPv4 address.
func ParseAddr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%q: %v: %w", s, err, ErrInvalidAddress)
	}
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("%q: not IPv4: %w", s, ErrInvalidAddress)
	}
	return a, nil
}

func (n *Network) Name() string         { return n.name }
func (n *Network) Type() NetworkType    { return n.typ }
func (n *Network) Prefix() netip.Prefix { return n.alloc.Prefix() }

// Allocator returns the address allocator of the network.
func (n *Network) Allocator() *AddressAllocator { return n.alloc }

// DisplayName returns the visualisation label, defaulting to the name.
func (n *Network) DisplayName() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.displayName == "" {
		return n.name
	}
	return n.displayName
}

// SetDisplayName sets the visualisation label.
func (n *Network) SetDisplayName(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.displayName = name
}

// DefaultLinkProperties returns the properties new interfaces inherit.
func (n *Network) DefaultLinkProperties() LinkProperties {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.defaults
}

// SetDefaultLinkProperties sets the properties interfaces inherit when
// they join.
func (n *Network) SetDefaultLinkProperties(lp LinkProperties) error {
	if err := lp.Validate(); err != nil {
		return fmt.Errorf("network %s: %w", n.name, err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.defaults = lp
	return nil
}

// Associate records node as attached. A node is recorded once.
func (n *Network) Associate(node *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.nodes {
		if existing == node {
			return
		}
	}
	n.nodes = append(n.nodes, node)
}

// Nodes returns the attached nodes in join order.
func (n *Network) Nodes() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Node(nil), n.nodes...)
}

func (n *Network) String() string {
	return fmt.Sprintf("%s(%s %s)", n.name, n.typ, n.Prefix())
}

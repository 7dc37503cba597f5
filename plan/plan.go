// Package plan turns a rendered topology into a tinet emulation plan.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/zinrai/seedplan/registry"
	"github.com/zinrai/seedplan/topology"
)

// ErrNotRendered is returned when the topology has not been rendered yet.
var ErrNotRendered = errors.New("topology not rendered")

// Options controls plan generation.
type Options struct {
	Image     string
	Templates *Templates
}

// builder accumulates the plan of one topology.
type builder struct {
	opts        Options
	interfaces  map[string][]Interface
	switches    map[*topology.Network]*Switch
	switchOrder []*topology.Network
	ifaceID     uint32 // Interface counter for MAC generation
}

// Build generates the emulation plan of a rendered topology.
func Build(inet *topology.Internet, opts Options) (Spec, error) {
	if !inet.Rendered() {
		return Spec{}, ErrNotRendered
	}
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	if opts.Templates == nil {
		opts.Templates = DefaultTemplates()
	}

	b := &builder{
		opts:       opts,
		interfaces: make(map[string][]Interface),
		switches:   make(map[*topology.Network]*Switch),
	}

	var spec Spec
	for _, n := range inet.Nodes() {
		nc, err := b.addNode(n)
		if err != nil {
			return Spec{}, err
		}
		spec.NodeConfigs = append(spec.NodeConfigs, nc)
	}

	for _, n := range inet.Nodes() {
		spec.Nodes = append(spec.Nodes, b.buildNode(n))
	}
	for _, net := range b.switchOrder {
		spec.Switches = append(spec.Switches, *b.switches[net])
	}
	return spec, nil
}

// NodeName returns the container name of a node.
func NodeName(n *topology.Node) string {
	if n.Scope() == registry.ScopeIX {
		return "rs-" + n.Name()
	}
	if n.Scope() != registry.ScopeForASN(n.ASN()) {
		return fmt.Sprintf("%s-%s", n.Scope(), n.Name())
	}
	return fmt.Sprintf("as%d-%s", n.ASN(), n.Name())
}

// InterfaceName returns the name of the i-th interface of a node.
func InterfaceName(i int) string {
	return fmt.Sprintf("net%d", i)
}

func (b *builder) addNode(n *topology.Node) (NodeConfig, error) {
	name := NodeName(n)
	data := TemplateData{
		Name:     name,
		ASN:      n.ASN(),
		Role:     n.Role().String(),
		RouterID: RouterID(n),
	}

	for i, iface := range n.Interfaces() {
		ifName := InterfaceName(i)
		b.attach(n, ifName, iface.Network())

		mac := GenerateMAC(b.ifaceID)
		b.ifaceID++

		data.Interfaces = append(data.Interfaces, InterfaceData{
			Name:    ifName,
			Network: iface.Network().Name(),
			Address: iface.Prefix().String(),
			MAC:     mac.String(),
			LLA:     MACToLLA(mac).String(),
			Netem:   netemArgs(iface.LinkProperties()),
		})
	}

	for _, sc := range n.StartCommands() {
		cmd := sc.Cmd
		if sc.Fork {
			cmd += " &"
		}
		data.StartCommands = append(data.StartCommands, cmd)
	}

	cmds, err := b.opts.Templates.Render(n.Role(), data)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("failed to render template for %s: %w", name, err)
	}
	return NodeConfig{Name: name, Cmds: cmds}, nil
}

// attach wires one interface. A cross-connect between exactly two nodes is
// a direct link declared on one side only, since tinet generates the
// reverse. Every other network is an OVS bridge.
func (b *builder) attach(n *topology.Node, ifName string, net *topology.Network) {
	members := net.Nodes()
	if net.Type() == topology.NetworkCrossConnect && len(members) == 2 {
		peer := members[0]
		if peer == n {
			peer = members[1]
		}
		if NodeName(n) < NodeName(peer) {
			b.addInterface(NodeName(n), ifName, NodeName(peer), interfaceOn(peer, net))
		}
		return
	}
	b.addBridgeInterface(NodeName(n), ifName, b.switchFor(n, net))
}

// addInterface adds a direct interface definition to a node.
func (b *builder) addInterface(nodeName, ifName, targetNode, targetIf string) {
	b.interfaces[nodeName] = append(b.interfaces[nodeName], Interface{
		Name: ifName,
		Type: InterfaceDirect,
		Args: fmt.Sprintf("%s#%s", targetNode, targetIf),
	})
}

// addBridgeInterface adds a bridge interface definition to a node and the
// matching port to the switch.
func (b *builder) addBridgeInterface(nodeName, ifName string, sw *Switch) {
	b.interfaces[nodeName] = append(b.interfaces[nodeName], Interface{
		Name: ifName,
		Type: InterfaceBridge,
		Args: sw.Name,
	})
	sw.Interfaces = append(sw.Interfaces, Interface{
		Name: ifName,
		Type: InterfaceContainer,
		Args: nodeName,
	})
}

func (b *builder) switchFor(n *topology.Node, net *topology.Network) *Switch {
	if sw, ok := b.switches[net]; ok {
		return sw
	}
	name := net.Name()
	if net.Type() == topology.NetworkLocal {
		// Local networks only resolve within the joining node's scope.
		name = fmt.Sprintf("net-%s-%s", n.Scope(), net.Name())
	}
	sw := &Switch{Name: name}
	b.switches[net] = sw
	b.switchOrder = append(b.switchOrder, net)
	return sw
}

func (b *builder) buildNode(n *topology.Node) Node {
	name := NodeName(n)
	node := Node{
		Name:       name,
		Image:      b.opts.Image,
		Privileged: n.Privileged(),
		BuildCmds:  n.BuildCommands(),
		Interfaces: b.interfaces[name],
	}

	software := mapset.NewSet[string](n.CommonSoftware()...)
	software.Append(n.Software()...)
	node.Software = software.ToSlice()
	sort.Strings(node.Software)

	for _, f := range n.Files() {
		node.Files = append(node.Files, File{Path: f.Path(), Content: f.Content()})
	}
	for _, p := range n.Ports() {
		node.Ports = append(node.Ports, Port{Host: p.Host, Node: p.Node, Proto: p.Proto})
	}
	if node.Interfaces == nil {
		node.Interfaces = []Interface{}
	}
	return node
}

// interfaceOn returns the interface name n uses on net.
func interfaceOn(n *topology.Node, net *topology.Network) string {
	for i, iface := range n.Interfaces() {
		if iface.Network() == net {
			return InterfaceName(i)
		}
	}
	return ""
}

func netemArgs(lp topology.LinkProperties) string {
	var args []string
	if lp.Latency > 0 {
		args = append(args, fmt.Sprintf("delay %dms", lp.Latency))
	}
	if lp.Bandwidth > 0 {
		args = append(args, fmt.Sprintf("rate %dbit", lp.Bandwidth))
	}
	if lp.Drop > 0 {
		args = append(args, fmt.Sprintf("loss %g%%", lp.Drop))
	}
	return strings.Join(args, " ")
}

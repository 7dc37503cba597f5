package topology

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/zinrai/seedplan/registry"
)

var defaultSoftware = []string{
	"curl", "nano", "vim-nox", "mtr-tiny", "iproute2", "iputils-ping",
	"tcpdump", "termshark", "dnsutils", "jq", "ipcalc",
}

// DefaultSoftware returns the packages every node starts with.
func DefaultSoftware() []string {
	return append([]string(nil), defaultSoftware...)
}

// StartCommand is a line of the start script. Forked commands run in the
// background.
type StartCommand struct {
	Cmd  string
	Fork bool
}

// PortForward maps a host port to a node port.
type PortForward struct {
	Host  int
	Node  int
	Proto string
}

// Node is a host, router or route server of the emulation.
//
// Declarations (JoinNetwork, CrossConnect) are queued and resolved once by
// Configure. The file, software and command accessors are plain bookkeeping
// and are not safe for concurrent use.
type Node struct {
	name  string
	asn   int
	scope string
	role  NodeRole

	files      map[string]*File
	fileOrder  []string
	software   mapset.Set[string]
	common     mapset.Set[string]
	buildCmds  []string
	startCmds  []StartCommand
	ports      []PortForward
	privileged bool

	mu         sync.Mutex
	configured bool
	pending    []Declaration
	xcs        map[xcKey]*CrossConnect
	interfaces []*Interface
}

// NewNode returns a node of AS asn. An empty scope means the AS scope.
func NewNode(name string, role NodeRole, asn int, scope string) *Node {
	if scope == "" {
		scope = registry.ScopeForASN(asn)
	}
	return &Node{
		name:     name,
		asn:      asn,
		scope:    scope,
		role:     role,
		files:    make(map[string]*File),
		software: mapset.NewSet[string](),
		common:   mapset.NewSet[string](defaultSoftware...),
		xcs:      make(map[xcKey]*CrossConnect),
	}
}

func (n *Node) Name() string   { return n.name }
func (n *Node) ASN() int       { return n.asn }
func (n *Node) Scope() string  { return n.scope }
func (n *Node) Role() NodeRole { return n.role }

func (n *Node) String() string {
	return fmt.Sprintf("as%d/%s", n.asn, n.name)
}

// JoinNetwork declares membership of the network named netName. address is
// an IPv4 address or AutoAddress. The network is resolved by Configure.
func (n *Node) JoinNetwork(netName, address string) error {
	if address == "" {
		address = AutoAddress
	}
	if address != AutoAddress {
		if _, err := ParseAddr(address); err != nil {
			return fmt.Errorf("%s: join %s: %w", n, netName, err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.configured {
		return fmt.Errorf("%s: join %s: %w", n, netName, ErrAlreadyConfigured)
	}
	n.pending = append(n.pending, NetworkJoin{Network: netName, Address: address})
	return nil
}

// CrossConnect declares a point-to-point link to node peerName of AS
// peerASN. address is in CIDR notation and must share its subnet with the
// address the peer declares back. Declaring the same peer again replaces the
// address.
func (n *Node) CrossConnect(peerASN int, peerName, address string) error {
	if peerName == n.name && peerASN == n.asn {
		return fmt.Errorf("%s: %w", n, ErrSelfCrossConnect)
	}
	prefix, err := ParsePrefix(address)
	if err != nil {
		return fmt.Errorf("%s: cross-connect to as%d/%s: %w", n, peerASN, peerName, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.configured {
		return fmt.Errorf("%s: cross-connect to as%d/%s: %w", n, peerASN, peerName, ErrAlreadyConfigured)
	}
	xc := CrossConnect{PeerName: peerName, PeerASN: peerASN, Address: prefix}
	if existing, ok := n.xcs[xc.key()]; ok {
		existing.Address = prefix
		return nil
	}
	n.xcs[xc.key()] = &xc
	n.pending = append(n.pending, xc)
	return nil
}

// GetCrossConnect returns the link this node declared towards peerName of
// AS peerASN.
func (n *Node) GetCrossConnect(peerASN int, peerName string) (CrossConnect, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	xc, ok := n.xcs[xcKey{name: peerName, asn: peerASN}]
	if !ok {
		return CrossConnect{}, fmt.Errorf("%s: as%d/%s is not in the cross-connect list: %w",
			n, peerASN, peerName, ErrPeerHasNoMatchingXC)
	}
	return *xc, nil
}

// CrossConnects returns every declared link in declaration order.
func (n *Node) CrossConnects() []CrossConnect {
	n.mu.Lock()
	defer n.mu.Unlock()

	var res []CrossConnect
	for _, d := range n.pending {
		if xc, ok := d.(CrossConnect); ok {
			res = append(res, *n.xcs[xc.key()])
		}
	}
	return res
}

// Declarations returns the queued declarations in order.
func (n *Node) Declarations() []Declaration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Declaration(nil), n.pending...)
}

// Configured reports whether Configure has been called.
func (n *Node) Configured() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.configured
}

// Interfaces returns the resolved interfaces in creation order.
func (n *Node) Interfaces() []*Interface {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Interface(nil), n.interfaces...)
}

// GetFile returns the file at path, creating an empty one on first access.
func (n *Node) GetFile(path string) *File {
	if f, ok := n.files[path]; ok {
		return f
	}
	f := &File{path: path}
	n.files[path] = f
	n.fileOrder = append(n.fileOrder, path)
	return f
}

// SetFile replaces the content of the file at path.
func (n *Node) SetFile(path, content string) *File {
	f := n.GetFile(path)
	f.SetContent(content)
	return f
}

// AppendFile appends content to the file at path.
func (n *Node) AppendFile(path, content string) *File {
	f := n.GetFile(path)
	f.AppendContent(content)
	return f
}

// Files returns all files in creation order.
func (n *Node) Files() []*File {
	res := make([]*File, 0, len(n.fileOrder))
	for _, p := range n.fileOrder {
		res = append(res, n.files[p])
	}
	return res
}

// AddSoftware adds a package to install on the node.
func (n *Node) AddSoftware(name string) {
	n.software.Add(name)
}

// Software returns the added packages, sorted.
func (n *Node) Software() []string {
	return sortedSet(n.software)
}

// CommonSoftware returns the packages copied from DefaultSoftware, sorted.
func (n *Node) CommonSoftware() []string {
	return sortedSet(n.common)
}

// AddBuildCommand adds a command run when the node image is built.
func (n *Node) AddBuildCommand(cmd string) {
	n.buildCmds = append(n.buildCmds, cmd)
}

// BuildCommands returns the build commands in insertion order.
func (n *Node) BuildCommands() []string {
	return append([]string(nil), n.buildCmds...)
}

// AppendStartCommand adds cmd to the end of the start script. A blocking
// command should be forked.
func (n *Node) AppendStartCommand(cmd string, fork bool) {
	n.startCmds = append(n.startCmds, StartCommand{Cmd: cmd, Fork: fork})
}

// InsertStartCommand adds cmd at index, clamped to the script bounds.
func (n *Node) InsertStartCommand(index int, cmd string, fork bool) {
	index = max(0, min(index, len(n.startCmds)))
	n.startCmds = append(n.startCmds, StartCommand{})
	copy(n.startCmds[index+1:], n.startCmds[index:])
	n.startCmds[index] = StartCommand{Cmd: cmd, Fork: fork}
}

// StartCommands returns the start script in order.
func (n *Node) StartCommands() []StartCommand {
	return append([]StartCommand(nil), n.startCmds...)
}

// AddPort forwards host port to node port. An empty proto means tcp.
func (n *Node) AddPort(host, node int, proto string) error {
	if proto == "" {
		proto = "tcp"
	}
	proto = strings.ToLower(proto)
	if proto != "tcp" && proto != "udp" {
		return fmt.Errorf("%s: unsupported port protocol %q", n, proto)
	}
	if host < 1 || host > 65535 || node < 1 || node > 65535 {
		return fmt.Errorf("%s: invalid port mapping %d:%d", n, host, node)
	}
	n.ports = append(n.ports, PortForward{Host: host, Node: node, Proto: proto})
	return nil
}

// Ports returns the port forwards in insertion order.
func (n *Node) Ports() []PortForward {
	return append([]PortForward(nil), n.ports...)
}

// SetPrivileged runs the node container privileged.
func (n *Node) SetPrivileged(privileged bool) { n.privileged = privileged }
func (n *Node) Privileged() bool              { return n.privileged }

func sortedSet(s mapset.Set[string]) []string {
	res := s.ToSlice()
	sort.Strings(res)
	return res
}

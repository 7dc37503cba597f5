package plan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinrai/seedplan/topology"
)

// testInternet builds and renders two ASes peering at ix100 and over a
// cross-connect, each with a router and a host on its local network.
func testInternet(t *testing.T) *topology.Internet {
	t.Helper()
	inet := topology.NewInternet()
	_, err := inet.CreateInternetExchange(100, topology.AutoAddress)
	require.NoError(t, err)

	for _, asn := range []int{2, 3} {
		as, err := inet.CreateAutonomousSystem(asn)
		require.NoError(t, err)
		net0, err := as.CreateNetwork("net0", topology.AutoAddress, topology.SeedConstraint())
		require.NoError(t, err)
		require.NoError(t, net0.SetDefaultLinkProperties(topology.LinkProperties{Latency: 10, Drop: 0.5}))

		r0, err := as.CreateRouter("r0")
		require.NoError(t, err)
		require.NoError(t, r0.JoinNetwork("net0", topology.AutoAddress))
		require.NoError(t, r0.JoinNetwork("ix100", topology.AutoAddress))

		h0, err := as.CreateHost("h0")
		require.NoError(t, err)
		require.NoError(t, h0.JoinNetwork("net0", topology.AutoAddress))
		h0.AddSoftware("iperf3")
		h0.AppendStartCommand("iperf3 -s", true)
		h0.SetFile("/etc/motd", "hello\n")
		require.NoError(t, h0.AddPort(8080, 80, "tcp"))
	}

	as2, err := inet.AutonomousSystem(2)
	require.NoError(t, err)
	as3, err := inet.AutonomousSystem(3)
	require.NoError(t, err)
	r2, err := as2.GetRouter("r0")
	require.NoError(t, err)
	r3, err := as3.GetRouter("r0")
	require.NoError(t, err)
	require.NoError(t, r2.CrossConnect(3, "r0", "10.254.0.1/30"))
	require.NoError(t, r3.CrossConnect(2, "r0", "10.254.0.2/30"))

	require.NoError(t, inet.Render(context.Background()))
	return inet
}

func testSpec(t *testing.T) Spec {
	t.Helper()
	spec, err := Build(testInternet(t), Options{})
	require.NoError(t, err)
	return spec
}

func findNode(spec Spec, name string) (Node, bool) {
	for _, n := range spec.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

func findConfig(spec Spec, name string) (NodeConfig, bool) {
	for _, nc := range spec.NodeConfigs {
		if nc.Name == name {
			return nc, true
		}
	}
	return NodeConfig{}, false
}

func cmdStrings(nc NodeConfig) []string {
	var res []string
	for _, c := range nc.Cmds {
		res = append(res, c.Cmd)
	}
	return res
}

func TestBuildNotRendered(t *testing.T) {
	inet := topology.NewInternet()
	_, err := Build(inet, Options{})
	assert.ErrorIs(t, err, ErrNotRendered)
}

func TestBuildNodeOrder(t *testing.T) {
	spec := testSpec(t)

	var names []string
	for _, n := range spec.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"as2-r0", "as2-h0", "as3-r0", "as3-h0", "rs-ix100"}, names)

	names = nil
	for _, nc := range spec.NodeConfigs {
		names = append(names, nc.Name)
	}
	assert.Equal(t, []string{"as2-r0", "as2-h0", "as3-r0", "as3-h0", "rs-ix100"}, names)
}

func TestBuildSwitches(t *testing.T) {
	spec := testSpec(t)

	members := make(map[string][]string)
	for _, sw := range spec.Switches {
		for _, iface := range sw.Interfaces {
			assert.Equal(t, InterfaceContainer, iface.Type)
			members[sw.Name] = append(members[sw.Name], iface.Args+"#"+iface.Name)
		}
	}

	assert.Equal(t, map[string][]string{
		"net-2-net0": {"as2-r0#net0", "as2-h0#net0"},
		"ix100":      {"as2-r0#net1", "as3-r0#net1", "rs-ix100#net0"},
		"net-3-net0": {"as3-r0#net0", "as3-h0#net0"},
	}, members)
}

func TestBuildDirectLink(t *testing.T) {
	spec := testSpec(t)

	var direct []string
	for _, n := range spec.Nodes {
		for _, iface := range n.Interfaces {
			if iface.Type == InterfaceDirect {
				direct = append(direct, n.Name+"#"+iface.Name+"->"+iface.Args)
			}
		}
	}
	// One side only; tinet generates the reverse.
	assert.Equal(t, []string{"as2-r0#net2->as3-r0#net2"}, direct)

	r3, ok := findNode(spec, "as3-r0")
	require.True(t, ok)
	for _, iface := range r3.Interfaces {
		assert.NotEqual(t, "net2", iface.Name)
	}
}

func TestInterfaceConnections(t *testing.T) {
	spec := testSpec(t)

	// Build connection map: node#interface -> target
	connections := make(map[string]map[string]string)
	for _, node := range spec.Nodes {
		connections[node.Name] = make(map[string]string)
		for _, iface := range node.Interfaces {
			if iface.Type == InterfaceDirect {
				connections[node.Name][iface.Name] = iface.Args
			}
		}
	}

	for nodeName, ifaces := range connections {
		for ifName, target := range ifaces {
			parts := strings.Split(target, "#")
			if len(parts) != 2 {
				t.Errorf("Invalid target format: %s", target)
				continue
			}
			targetNode, targetIf := parts[0], parts[1]
			if _, ok := findNode(spec, targetNode); !ok {
				t.Errorf("%s#%s targets unknown node %s", nodeName, ifName, targetNode)
			}
			if reverse, ok := connections[targetNode][targetIf]; ok {
				t.Errorf("Link declared twice: %s#%s -> %s and %s#%s -> %s",
					nodeName, ifName, target, targetNode, targetIf, reverse)
			}
		}
	}
}

func TestAddressCommandsGenerated(t *testing.T) {
	spec := testSpec(t)

	nc, ok := findConfig(spec, "as2-r0")
	require.True(t, ok)
	cmds := cmdStrings(nc)
	assert.Contains(t, cmds, "ip addr add 10.2.0.254/24 dev net0")
	assert.Contains(t, cmds, "ip addr add 10.100.0.2/24 dev net1")
	assert.Contains(t, cmds, "ip addr add 10.254.0.1/30 dev net2")
	assert.Contains(t, cmds, "ip addr add 10.2.0.254/32 dev lo")
	assert.Contains(t, cmds, "tc qdisc add dev net0 root netem delay 10ms loss 0.5%")
	assert.Contains(t, cmds, "sysctl -w net.ipv4.ip_forward=1")

	nc, ok = findConfig(spec, "rs-ix100")
	require.True(t, ok)
	assert.Contains(t, cmdStrings(nc), "ip addr add 10.100.0.100/24 dev net0")

	nc, ok = findConfig(spec, "as3-h0")
	require.True(t, ok)
	cmds = cmdStrings(nc)
	assert.Contains(t, cmds, "ip addr add 10.3.0.71/24 dev net0")
	assert.NotContains(t, cmds, "sysctl -w net.ipv4.ip_forward=1")
	assert.Equal(t, "iperf3 -s &", cmds[len(cmds)-1])
}

func TestMACCommandsGenerated(t *testing.T) {
	spec := testSpec(t)

	for _, nc := range spec.NodeConfigs {
		foundMAC := false
		for _, cmd := range nc.Cmds {
			if strings.Contains(cmd.Cmd, "ip link set dev") && strings.Contains(cmd.Cmd, "address 02:") {
				foundMAC = true
				break
			}
		}
		if !foundMAC {
			t.Errorf("Node %s missing MAC setting command", nc.Name)
		}
	}
}

func TestMACUniqueness(t *testing.T) {
	spec := testSpec(t)

	macs := make(map[string]string) // MAC -> "node:interface"
	for _, nc := range spec.NodeConfigs {
		for _, cmd := range nc.Cmds {
			if strings.HasPrefix(cmd.Cmd, "ip link set dev") {
				parts := strings.Fields(cmd.Cmd)
				require.Len(t, parts, 7)
				key := nc.Name + ":" + parts[4]
				if existing, ok := macs[parts[6]]; ok {
					t.Errorf("Duplicate MAC %s: %s and %s", parts[6], existing, key)
				}
				macs[parts[6]] = key
			}
		}
	}
	assert.Len(t, macs, 9)
}

func TestBuildNodeFields(t *testing.T) {
	spec := testSpec(t)

	h0, ok := findNode(spec, "as2-h0")
	require.True(t, ok)
	assert.Equal(t, DefaultImage, h0.Image)
	assert.Contains(t, h0.Software, "iperf3")
	assert.Contains(t, h0.Software, "tcpdump")
	assert.True(t, sort.StringsAreSorted(h0.Software))
	assert.Equal(t, []File{{Path: "/etc/motd", Content: "hello\n"}}, h0.Files)
	assert.Equal(t, []Port{{Host: 8080, Node: 80, Proto: "tcp"}}, h0.Ports)
}

func TestBuildTemplateOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `host: |
  echo {{ .Name }} {{ .ASN }}
  {{ range .Interfaces }}echo {{ .Name }} {{ .Address }}
  {{ end }}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplates().Router, tmpl.Router)

	spec, err := Build(testInternet(t), Options{Image: "debian:trixie", Templates: tmpl})
	require.NoError(t, err)

	nc, ok := findConfig(spec, "as3-h0")
	require.True(t, ok)
	assert.Equal(t, []string{"echo as3-h0 3", "echo net0 10.3.0.71/24"}, cmdStrings(nc))

	r0, ok := findNode(spec, "as3-r0")
	require.True(t, ok)
	assert.Equal(t, "debian:trixie", r0.Image)
}

func TestRouterID(t *testing.T) {
	inet := testInternet(t)
	as2, err := inet.AutonomousSystem(2)
	require.NoError(t, err)
	r0, err := as2.GetRouter("r0")
	require.NoError(t, err)
	assert.Equal(t, "10.2.0.254", RouterID(r0))

	ix, err := inet.InternetExchange(100)
	require.NoError(t, err)
	assert.Equal(t, "10.100.0.100", RouterID(ix.RouteServer()))

	assert.Equal(t, "", RouterID(topology.NewNode("lonely", topology.RoleRouter, 9, "")))
}

func TestNetemArgs(t *testing.T) {
	tests := []struct {
		lp       topology.LinkProperties
		expected string
	}{
		{topology.LinkProperties{}, ""},
		{topology.LinkProperties{Latency: 5}, "delay 5ms"},
		{topology.LinkProperties{Bandwidth: 1000000, Drop: 1}, "rate 1000000bit loss 1%"},
		{topology.LinkProperties{Latency: 1, Bandwidth: 2, Drop: 2.5}, "delay 1ms rate 2bit loss 2.5%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, netemArgs(tt.lp))
	}
}

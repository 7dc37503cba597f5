package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/zinrai/seedplan/topology"
)

// Scenario is the YAML description of a topology.
type Scenario struct {
	InternetExchanges []ExchangeSpec `yaml:"internet_exchanges"`
	AutonomousSystems []ASSpec       `yaml:"autonomous_systems"`
}

// ExchangeSpec describes an internet exchange.
type ExchangeSpec struct {
	ID          int    `yaml:"id"`
	Prefix      string `yaml:"prefix"`
	DisplayName string `yaml:"display_name"`
}

// ASSpec describes an autonomous system.
type ASSpec struct {
	ASN      int           `yaml:"asn"`
	Networks []NetworkSpec `yaml:"networks"`
	Routers  []NodeSpec    `yaml:"routers"`
	Hosts    []NodeSpec    `yaml:"hosts"`
}

// NetworkSpec describes a local network. An empty prefix is auto.
type NetworkSpec struct {
	Name        string                   `yaml:"name"`
	Prefix      string                   `yaml:"prefix"`
	Constraint  string                   `yaml:"constraint"` // default or seed
	Link        *topology.LinkProperties `yaml:"link"`
	DisplayName string                   `yaml:"display_name"`
}

// NodeSpec describes a router or host.
type NodeSpec struct {
	Name          string          `yaml:"name"`
	Joins         []JoinSpec      `yaml:"joins"`
	CrossConnects []XCSpec        `yaml:"cross_connects"`
	Software      []string        `yaml:"software"`
	BuildCmds     []string        `yaml:"build_cmds"`
	StartCmds     []StartCmdSpec  `yaml:"start_cmds"`
	Files         []FileSpec      `yaml:"files"`
	Ports         []PortSpec      `yaml:"ports"`
	Privileged    bool            `yaml:"privileged"`
	Links         []InterfaceLink `yaml:"links"`
}

// JoinSpec joins a network. An empty address is auto.
type JoinSpec struct {
	Network string `yaml:"network"`
	Address string `yaml:"address"`
}

// XCSpec declares a cross-connect with an address in CIDR notation.
type XCSpec struct {
	PeerASN  int    `yaml:"peer_asn"`
	PeerName string `yaml:"peer_name"`
	Address  string `yaml:"address"`
}

// StartCmdSpec is a start script line. Index inserts instead of appending.
type StartCmdSpec struct {
	Cmd   string `yaml:"cmd"`
	Fork  bool   `yaml:"fork"`
	Index *int   `yaml:"index"`
}

type FileSpec struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

type PortSpec struct {
	Host  int    `yaml:"host"`
	Node  int    `yaml:"node"`
	Proto string `yaml:"proto"`
}

// InterfaceLink overrides the link properties of the interface on a network.
// It is applied after rendering.
type InterfaceLink struct {
	Network string `yaml:"network"`

	topology.LinkProperties `yaml:",inline"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

// Build declares the scenario on a new Internet. The result still needs
// to be rendered; ApplyLinks runs afterwards.
func (s *Scenario) Build(opts ...topology.Option) (*topology.Internet, error) {
	inet := topology.NewInternet(opts...)

	for _, ixs := range s.InternetExchanges {
		ix, err := inet.CreateInternetExchange(ixs.ID, ixs.Prefix)
		if err != nil {
			return nil, err
		}
		if ixs.DisplayName != "" {
			ix.PeeringLAN().SetDisplayName(ixs.DisplayName)
		}
	}

	for _, ass := range s.AutonomousSystems {
		as, err := inet.CreateAutonomousSystem(ass.ASN)
		if err != nil {
			return nil, err
		}
		for _, ns := range ass.Networks {
			if err := declareNetwork(as, ns); err != nil {
				return nil, err
			}
		}
		for _, rs := range ass.Routers {
			n, err := as.CreateRouter(rs.Name)
			if err != nil {
				return nil, err
			}
			if err := declareNode(n, rs); err != nil {
				return nil, err
			}
		}
		for _, hs := range ass.Hosts {
			n, err := as.CreateHost(hs.Name)
			if err != nil {
				return nil, err
			}
			if err := declareNode(n, hs); err != nil {
				return nil, err
			}
		}
	}

	return inet, nil
}

// ApplyLinks sets the per-interface link overrides of a rendered Internet.
func (s *Scenario) ApplyLinks(inet *topology.Internet) error {
	for _, ass := range s.AutonomousSystems {
		as, err := inet.AutonomousSystem(ass.ASN)
		if err != nil {
			return err
		}
		for _, rs := range ass.Routers {
			n, err := as.GetRouter(rs.Name)
			if err != nil {
				return err
			}
			if err := applyLinks(n, rs.Links); err != nil {
				return err
			}
		}
		for _, hs := range ass.Hosts {
			n, err := as.GetHost(hs.Name)
			if err != nil {
				return err
			}
			if err := applyLinks(n, hs.Links); err != nil {
				return err
			}
		}
	}
	return nil
}

func declareNetwork(as *topology.AutonomousSystem, ns NetworkSpec) error {
	var c topology.Constraint
	switch ns.Constraint {
	case "", "default":
	case "seed":
		c = topology.SeedConstraint()
	default:
		return fmt.Errorf("as%d/%s: unknown constraint %q", as.ASN(), ns.Name, ns.Constraint)
	}

	prefix := ns.Prefix
	if prefix == "" {
		prefix = topology.AutoAddress
	}
	net, err := as.CreateNetwork(ns.Name, prefix, c)
	if err != nil {
		return err
	}
	if ns.DisplayName != "" {
		net.SetDisplayName(ns.DisplayName)
	}
	if ns.Link != nil {
		if err := net.SetDefaultLinkProperties(*ns.Link); err != nil {
			return err
		}
	}
	return nil
}

func declareNode(n *topology.Node, spec NodeSpec) error {
	for _, j := range spec.Joins {
		if err := n.JoinNetwork(j.Network, j.Address); err != nil {
			return err
		}
	}
	for _, xc := range spec.CrossConnects {
		if err := n.CrossConnect(xc.PeerASN, xc.PeerName, xc.Address); err != nil {
			return err
		}
	}
	for _, sw := range spec.Software {
		n.AddSoftware(sw)
	}
	for _, cmd := range spec.BuildCmds {
		n.AddBuildCommand(cmd)
	}
	for _, sc := range spec.StartCmds {
		if sc.Index != nil {
			n.InsertStartCommand(*sc.Index, sc.Cmd, sc.Fork)
		} else {
			n.AppendStartCommand(sc.Cmd, sc.Fork)
		}
	}
	for _, f := range spec.Files {
		n.SetFile(f.Path, f.Content)
	}
	for _, p := range spec.Ports {
		if err := n.AddPort(p.Host, p.Node, p.Proto); err != nil {
			return err
		}
	}
	n.SetPrivileged(spec.Privileged)
	return nil
}

func applyLinks(n *topology.Node, links []InterfaceLink) error {
	for _, l := range links {
		found := false
		for _, iface := range n.Interfaces() {
			if iface.Network().Name() != l.Network {
				continue
			}
			if err := iface.SetLinkProperties(l.LinkProperties); err != nil {
				return fmt.Errorf("%s: %w", n, err)
			}
			found = true
		}
		if !found {
			return fmt.Errorf("%s: no interface on %s: %w", n, l.Network, topology.ErrNetworkNotFound)
		}
	}
	return nil
}

package plan

const (
	// DefaultImage is the container image used when none is configured.
	DefaultImage = "ghcr.io/zinrai/docker-debian-bird2:debian-trixie"

	// Interface types understood by tinet.
	InterfaceDirect    = "direct"
	InterfaceBridge    = "bridge"
	InterfaceContainer = "container"
)

// Spec is the emulation plan: tinet nodes, switches and node configs.
type Spec struct {
	Nodes       []Node       `yaml:"nodes"`
	Switches    []Switch     `yaml:"switches,omitempty"`
	NodeConfigs []NodeConfig `yaml:"node_configs"`
}

// Node represents an emulated container.
type Node struct {
	Name       string      `yaml:"name"`
	Image      string      `yaml:"image"`
	Privileged bool        `yaml:"privileged,omitempty"`
	Software   []string    `yaml:"software,omitempty"`
	BuildCmds  []string    `yaml:"build_cmds,omitempty"`
	Files      []File      `yaml:"files,omitempty"`
	Ports      []Port      `yaml:"ports,omitempty"`
	Interfaces []Interface `yaml:"interfaces"`
}

// Interface represents a network interface.
type Interface struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Args string `yaml:"args"`
}

// Switch represents an OVS bridge backing a shared network.
type Switch struct {
	Name       string      `yaml:"name"`
	Interfaces []Interface `yaml:"interfaces"`
}

// File is placed on the node before start.
type File struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// Port forwards a host port into the node.
type Port struct {
	Host  int    `yaml:"host"`
	Node  int    `yaml:"node"`
	Proto string `yaml:"proto"`
}

// NodeConfig represents the configuration commands for a node.
type NodeConfig struct {
	Name string    `yaml:"name"`
	Cmds []Command `yaml:"cmds"`
}

// Command represents a shell command.
type Command struct {
	Cmd string `yaml:"cmd"`
}

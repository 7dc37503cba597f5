package topology

import "fmt"

// NodeRole tags what a node does in the emulation.
type NodeRole int

const (
	RoleHost NodeRole = iota
	RoleRouter
	RoleRouteServer
)

func (r NodeRole) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleRouter:
		return "router"
	case RoleRouteServer:
		return "route_server"
	default:
		return fmt.Sprintf("NodeRole(%d)", int(r))
	}
}

// NetworkType tags how a network was created.
type NetworkType int

const (
	NetworkLocal NetworkType = iota
	NetworkCrossConnect
	NetworkInternetExchange
)

func (t NetworkType) String() string {
	switch t {
	case NetworkLocal:
		return "local"
	case NetworkCrossConnect:
		return "cross_connect"
	case NetworkInternetExchange:
		return "internet_exchange"
	default:
		return fmt.Sprintf("NetworkType(%d)", int(t))
	}
}

// AutoAddress asks for an allocator-assigned address or subnet.
const AutoAddress = "auto"

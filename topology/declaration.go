package topology

import (
	"fmt"
	"net/netip"
)

// Declaration is a binding a node states before the topology is resolved.
// It is either a NetworkJoin or a CrossConnect.
type Declaration interface {
	declaration()
}

// NetworkJoin attaches the node to a named network. Address is an IPv4
// address or AutoAddress.
type NetworkJoin struct {
	Network string
	Address string
}

// CrossConnect is a point-to-point link to a peer node. Network names the
// shared link network once one side has been configured.
type CrossConnect struct {
	PeerName string
	PeerASN  int
	Address  netip.Prefix
	Network  string
}

func (NetworkJoin) declaration()  {}
func (CrossConnect) declaration() {}

type xcKey struct {
	name string
	asn  int
}

func (c CrossConnect) key() xcKey {
	return xcKey{name: c.PeerName, asn: c.PeerASN}
}

// CrossConnectNetworkName derives the link network name from both endpoints.
// The pair is sorted by ASN, then name, so both sides compute the same name.
func CrossConnectNetworkName(asnA int, nameA string, asnB int, nameB string) string {
	if asnB < asnA || (asnB == asnA && nameB < nameA) {
		asnA, nameA, asnB, nameB = asnB, nameB, asnA, nameA
	}
	return fmt.Sprintf("xc-as%d.%s-as%d.%s", asnA, nameA, asnB, nameB)
}

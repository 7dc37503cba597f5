package plan

import (
	"encoding/binary"
	"net"
)

// GenerateMAC returns the MAC of the ifaceID-th interface of a plan.
// Interfaces are numbered across all nodes in plan order, so every
// interface of one plan gets a distinct address of the form
// 02:XX:XX:XX:XX:00 with the locally administered bit set.
func GenerateMAC(ifaceID uint32) net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	mac[0] = 0x02
	binary.BigEndian.PutUint32(mac[1:5], ifaceID)
	return mac
}

// MACToLLA returns the EUI-64 IPv6 link-local address of a 48-bit MAC
// (RFC 4291 Section 2.5.1), or nil for any other length.
func MACToLLA(mac net.HardwareAddr) net.IP {
	if len(mac) != 6 {
		return nil
	}

	ip := make(net.IP, net.IPv6len)
	ip[0], ip[1] = 0xfe, 0x80
	copy(ip[8:11], mac[0:3])
	ip[8] ^= 0x02 // U/L bit
	ip[11], ip[12] = 0xff, 0xfe
	copy(ip[13:], mac[3:6])
	return ip
}

package topology

import (
	"fmt"
	"net/netip"
	"sync"
)

// MaxAutoSubnetASN is the largest ASN that fits the second octet of
// 10.<asn>.0.0/16.
const MaxAutoSubnetASN = 255

// SubnetAllocator carves successive /24 blocks out of 10.<asn>.0.0/16.
// The sequence is ascending, finite and cannot be restarted.
type SubnetAllocator struct {
	mu   sync.Mutex
	asn  int
	next int
}

// NewSubnetAllocator fails with ErrAutoSubnetUnavailable when asn does not
// fit in one octet.
func NewSubnetAllocator(asn int) (*SubnetAllocator, error) {
	if asn < 0 || asn > MaxAutoSubnetASN {
		return nil, fmt.Errorf("as%d: asn above %d: %w", asn, MaxAutoSubnetASN, ErrAutoSubnetUnavailable)
	}
	return &SubnetAllocator{asn: asn}, nil
}

// Block returns the /16 the allocator carves from.
func (s *SubnetAllocator) Block() netip.Prefix {
	return netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(s.asn), 0, 0}), 16)
}

// Next returns the next unused /24.
func (s *SubnetAllocator) Next() (netip.Prefix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next > 255 {
		return netip.Prefix{}, fmt.Errorf("as%d: all 256 /24 blocks of %s used: %w", s.asn, s.Block(), ErrSubnetExhausted)
	}
	p := netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(s.asn), byte(s.next), 0}), 24)
	s.next++
	return p, nil
}

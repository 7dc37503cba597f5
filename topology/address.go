package topology

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"go4.org/netipx"
)

// OffsetRange is an inclusive run of host offsets inside a prefix. It is
// walked from First to Last, so First > Last walks downwards.
type OffsetRange struct {
	First uint32
	Last  uint32
}

func (r OffsetRange) bounds() (lo, hi uint32) {
	if r.First <= r.Last {
		return r.First, r.Last
	}
	return r.Last, r.First
}

// Contains reports whether off lies in the range.
func (r OffsetRange) Contains(off uint32) bool {
	lo, hi := r.bounds()
	return off >= lo && off <= hi
}

// clip intersects r with within, keeping the walk direction of r.
func (r OffsetRange) clip(within OffsetRange) (OffsetRange, bool) {
	lo, hi := r.bounds()
	wlo, whi := within.bounds()
	lo, hi = max(lo, wlo), min(hi, whi)
	if lo > hi {
		return OffsetRange{}, false
	}
	if r.First > r.Last {
		return OffsetRange{First: hi, Last: lo}, true
	}
	return OffsetRange{First: lo, Last: hi}, true
}

func (r OffsetRange) walk(fn func(off uint32) bool) {
	if r.First <= r.Last {
		for off := r.First; ; off++ {
			if fn(off) || off == r.Last {
				return
			}
		}
	}
	for off := r.First; ; off-- {
		if fn(off) || off == r.Last {
			return
		}
	}
}

// Constraint decides which host offsets a role may receive.
type Constraint interface {
	// Candidates returns the ranges auto-assignment walks for role, in order.
	Candidates(role NodeRole, asn int, usable OffsetRange) []OffsetRange
	// Reserved reports whether off is held back from role.
	Reserved(role NodeRole, off uint32) bool
}

// DefaultConstraint reserves nothing beyond the network and broadcast
// addresses.
type DefaultConstraint struct{}

func (DefaultConstraint) Candidates(_ NodeRole, _ int, usable OffsetRange) []OffsetRange {
	return []OffsetRange{usable}
}

func (DefaultConstraint) Reserved(NodeRole, uint32) bool { return false }

// RoleConstraint reserves an offset range per role. Roles without a range
// may use any offset not reserved for another role.
type RoleConstraint struct {
	ranges map[NodeRole]OffsetRange
}

// NewRoleConstraint copies ranges into a new constraint.
func NewRoleConstraint(ranges map[NodeRole]OffsetRange) *RoleConstraint {
	c := &RoleConstraint{ranges: make(map[NodeRole]OffsetRange, len(ranges))}
	for role, r := range ranges {
		c.ranges[role] = r
	}
	return c
}

// SeedConstraint hands hosts .71 to .99 and routers .254 down to .200.
func SeedConstraint() *RoleConstraint {
	return NewRoleConstraint(map[NodeRole]OffsetRange{
		RoleHost:   {First: 71, Last: 99},
		RoleRouter: {First: 254, Last: 200},
	})
}

func (c *RoleConstraint) Candidates(role NodeRole, _ int, usable OffsetRange) []OffsetRange {
	r, ok := c.ranges[role]
	if !ok {
		return []OffsetRange{usable}
	}
	clipped, ok := r.clip(usable)
	if !ok {
		return nil
	}
	return []OffsetRange{clipped}
}

func (c *RoleConstraint) Reserved(role NodeRole, off uint32) bool {
	for other, r := range c.ranges {
		if other != role && r.Contains(off) {
			return true
		}
	}
	return false
}

// ASNConstraint gives routers and route servers the host offset equal to
// their ASN, as on exchange peering LANs. When that offset is taken or out
// of range, and for hosts, addresses are handed out from the top of the
// prefix down so the low ASN offsets stay free for later members.
type ASNConstraint struct{}

func (ASNConstraint) Candidates(role NodeRole, asn int, usable OffsetRange) []OffsetRange {
	topDown := OffsetRange{First: usable.Last, Last: usable.First}
	if role != RoleHost && asn > 0 && usable.Contains(uint32(asn)) {
		return []OffsetRange{{First: uint32(asn), Last: uint32(asn)}, topDown}
	}
	return []OffsetRange{topDown}
}

func (ASNConstraint) Reserved(NodeRole, uint32) bool { return false }

// AddressAllocator hands out and validates IPv4 addresses of one prefix.
// It is safe for concurrent use.
type AddressAllocator struct {
	mu         sync.Mutex
	prefix     netip.Prefix
	base       uint32
	usable     OffsetRange
	constraint Constraint
	assigned   map[uint32]struct{}
}

// NewAddressAllocator returns an allocator for prefix. A nil constraint
// means DefaultConstraint.
func NewAddressAllocator(prefix netip.Prefix, c Constraint) (*AddressAllocator, error) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%s: not an IPv4 prefix: %w", prefix, ErrInvalidAddress)
	}
	if c == nil {
		c = DefaultConstraint{}
	}
	prefix = prefix.Masked()
	rng := netipx.RangeOfPrefix(prefix)
	base := addrToUint32(rng.From())
	last := addrToUint32(rng.To()) - base

	usable := OffsetRange{First: 0, Last: last}
	if prefix.Bits() < 31 {
		usable = OffsetRange{First: 1, Last: last - 1}
	}

	return &AddressAllocator{
		prefix:     prefix,
		base:       base,
		usable:     usable,
		constraint: c,
		assigned:   make(map[uint32]struct{}),
	}, nil
}

// Prefix returns the masked prefix the allocator serves.
func (a *AddressAllocator) Prefix() netip.Prefix {
	return a.prefix
}

// Assign returns the next free address role may use.
func (a *AddressAllocator) Assign(role NodeRole, asn int) (netip.Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.constraint.Candidates(role, asn, a.usable) {
		var (
			picked uint32
			found  bool
		)
		r.walk(func(off uint32) bool {
			if !a.usable.Contains(off) || a.constraint.Reserved(role, off) {
				return false
			}
			if _, taken := a.assigned[off]; taken {
				return false
			}
			picked, found = off, true
			return true
		})
		if found {
			a.assigned[picked] = struct{}{}
			return a.addrAt(picked), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%s: no free address for %s: %w", a.prefix, role, ErrAddressExhausted)
}

// Validate checks that addr could be claimed by role without claiming it.
func (a *AddressAllocator) Validate(addr netip.Addr, role NodeRole) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.check(addr, role)
	return err
}

// Claim validates addr for role and marks it assigned.
func (a *AddressAllocator) Claim(addr netip.Addr, role NodeRole) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	off, err := a.check(addr, role)
	if err != nil {
		return err
	}
	a.assigned[off] = struct{}{}
	return nil
}

// Assigned returns every handed out address in ascending order.
func (a *AddressAllocator) Assigned() []netip.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	offs := make([]uint32, 0, len(a.assigned))
	for off := range a.assigned {
		offs = append(offs, off)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })

	res := make([]netip.Addr, len(offs))
	for i, off := range offs {
		res[i] = a.addrAt(off)
	}
	return res
}

func (a *AddressAllocator) check(addr netip.Addr, role NodeRole) (uint32, error) {
	if !addr.Is4() {
		return 0, fmt.Errorf("%s: not an IPv4 address: %w", addr, ErrInvalidAddress)
	}
	if !a.prefix.Contains(addr) {
		return 0, fmt.Errorf("%s not in %s: %w", addr, a.prefix, ErrAddressOutOfRange)
	}
	off := addrToUint32(addr) - a.base
	if !a.usable.Contains(off) {
		return 0, fmt.Errorf("%s is the network or broadcast address of %s: %w", addr, a.prefix, ErrAddressOutOfRange)
	}
	if a.constraint.Reserved(role, off) {
		return 0, fmt.Errorf("%s is reserved in %s, not for %s: %w", addr, a.prefix, role, ErrAddressOutOfRange)
	}
	if _, taken := a.assigned[off]; taken {
		return 0, fmt.Errorf("%s already assigned in %s: %w", addr, a.prefix, ErrAddressConflict)
	}
	return off, nil
}

func (a *AddressAllocator) addrAt(off uint32) netip.Addr {
	return uint32ToAddr(a.base + off)
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

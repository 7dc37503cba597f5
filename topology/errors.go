package topology

import "errors"

// Errors returned while declaring or resolving a topology. They are wrapped
// with the offending AS, node and network, so match them with errors.Is.
var (
	ErrAddressExhausted      = errors.New("address exhausted")
	ErrAddressConflict       = errors.New("address conflict")
	ErrAddressOutOfRange     = errors.New("address out of range")
	ErrAutoSubnetUnavailable = errors.New("auto subnet unavailable")
	ErrSubnetExhausted       = errors.New("subnet exhausted")
	ErrNetworkNotFound       = errors.New("network not found")
	ErrPeerNotFound          = errors.New("peer not found")
	ErrPeerHasNoMatchingXC   = errors.New("peer has no matching cross-connect")
	ErrSubnetMismatch        = errors.New("subnet mismatch")
	ErrAlreadyConfigured     = errors.New("already configured")
	ErrInvalidLinkProperty   = errors.New("invalid link property")
	ErrSelfCrossConnect      = errors.New("cannot cross-connect to self")
	ErrInvalidAddress        = errors.New("invalid address")
)

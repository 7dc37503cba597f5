package topology

import "fmt"

// LinkProperties shape traffic on an interface.
type LinkProperties struct {
	// Latency is added delay in milliseconds.
	Latency int `yaml:"latency"`
	// Bandwidth is the egress limit in bits per second, 0 for unlimited.
	Bandwidth int `yaml:"bandwidth"`
	// Drop is the packet loss percentage.
	Drop float64 `yaml:"drop"`
}

// Validate rejects negative latency or bandwidth and drop outside [0,100].
func (lp LinkProperties) Validate() error {
	if lp.Latency < 0 {
		return fmt.Errorf("latency %d ms: %w", lp.Latency, ErrInvalidLinkProperty)
	}
	if lp.Bandwidth < 0 {
		return fmt.Errorf("bandwidth %d bps: %w", lp.Bandwidth, ErrInvalidLinkProperty)
	}
	if lp.Drop < 0 || lp.Drop > 100 {
		return fmt.Errorf("drop %g%%: %w", lp.Drop, ErrInvalidLinkProperty)
	}
	return nil
}

// IsZero reports whether no shaping is requested.
func (lp LinkProperties) IsZero() bool {
	return lp.Latency == 0 && lp.Bandwidth == 0 && lp.Drop == 0
}

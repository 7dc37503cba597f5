package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zinrai/seedplan/registry"
)

// ErrAlreadyExists is returned when an AS or exchange id is created twice.
var ErrAlreadyExists = errors.New("already exists")

// Internet is one topology build session: every AS, exchange and node is
// declared on it, then Render resolves them all.
type Internet struct {
	reg         *registry.Registry
	log         *zap.Logger
	parallelism int

	mu       sync.Mutex
	ases     map[int]*AutonomousSystem
	ixes     map[int]*InternetExchange
	rendered bool
}

// Option configures an Internet.
type Option func(*Internet)

// WithLogger sets the logger used by Render.
func WithLogger(l *zap.Logger) Option {
	return func(i *Internet) {
		if l != nil {
			i.log = l
		}
	}
}

// WithParallelism bounds how many nodes Render configures at once.
// Values below 1 mean one.
func WithParallelism(n int) Option {
	return func(i *Internet) {
		i.parallelism = max(1, n)
	}
}

// NewInternet returns an empty session with its own registry.
func NewInternet(opts ...Option) *Internet {
	i := &Internet{
		reg:         registry.New(),
		log:         zap.NewNop(),
		parallelism: 1,
		ases:        make(map[int]*AutonomousSystem),
		ixes:        make(map[int]*InternetExchange),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry returns the session registry.
func (i *Internet) Registry() *registry.Registry { return i.reg }

// CreateAutonomousSystem adds the AS asn. Each ASN is created once.
func (i *Internet) CreateAutonomousSystem(asn int) (*AutonomousSystem, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.ases[asn]; ok {
		return nil, fmt.Errorf("as%d: %w", asn, ErrAlreadyExists)
	}
	as := NewAutonomousSystem(asn, i.reg)
	i.ases[asn] = as
	return as, nil
}

// AutonomousSystem returns the AS asn.
func (i *Internet) AutonomousSystem(asn int) (*AutonomousSystem, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	as, ok := i.ases[asn]
	if !ok {
		return nil, fmt.Errorf("as%d: %w", asn, registry.ErrNotFound)
	}
	return as, nil
}

// AutonomousSystems returns every AS sorted by ASN.
func (i *Internet) AutonomousSystems() []*AutonomousSystem {
	i.mu.Lock()
	defer i.mu.Unlock()

	res := make([]*AutonomousSystem, 0, len(i.ases))
	for _, as := range i.ases {
		res = append(res, as)
	}
	sort.Slice(res, func(a, b int) bool { return res[a].asn < res[b].asn })
	return res
}

// CreateInternetExchange creates exchange id with its peering LAN ix<id>.
// prefix is a CIDR or AutoAddress for 10.<id>.0.0/24.
func (i *Internet) CreateInternetExchange(id int, prefix string) (*InternetExchange, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.ixes[id]; ok {
		return nil, fmt.Errorf("%s: %w", IXNetworkName(id), ErrAlreadyExists)
	}
	ix, err := newInternetExchange(i.reg, id, prefix)
	if err != nil {
		return nil, err
	}
	i.ixes[id] = ix
	return ix, nil
}

// InternetExchange returns the exchange id.
func (i *Internet) InternetExchange(id int) (*InternetExchange, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	ix, ok := i.ixes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", IXNetworkName(id), registry.ErrNotFound)
	}
	return ix, nil
}

// InternetExchanges returns every exchange sorted by id.
func (i *Internet) InternetExchanges() []*InternetExchange {
	i.mu.Lock()
	defer i.mu.Unlock()

	res := make([]*InternetExchange, 0, len(i.ixes))
	for _, ix := range i.ixes {
		res = append(res, ix)
	}
	sort.Slice(res, func(a, b int) bool { return res[a].id < res[b].id })
	return res
}

// Nodes returns every node: per AS by ASN, routers then hosts in creation
// order, followed by the exchange route servers.
func (i *Internet) Nodes() []*Node {
	var res []*Node
	for _, as := range i.AutonomousSystems() {
		res = append(res, as.Routers()...)
		res = append(res, as.Hosts()...)
	}
	for _, ix := range i.InternetExchanges() {
		res = append(res, ix.RouteServer())
	}
	return res
}

// Rendered reports whether Render completed.
func (i *Internet) Rendered() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rendered
}

// Render configures every node once. The topology must be fully declared
// beforehand. Network joins resolve sequentially in Nodes order, so auto
// addresses are the same on every run. Cross-connects only claim declared
// addresses and resolve concurrently, up to the configured parallelism.
func (i *Internet) Render(ctx context.Context) error {
	i.mu.Lock()
	if i.rendered {
		i.mu.Unlock()
		return fmt.Errorf("internet: %w", ErrAlreadyConfigured)
	}
	i.mu.Unlock()

	nodes := i.Nodes()
	i.log.Info("Rendering topology",
		zap.Int("autonomous_systems", len(i.AutonomousSystems())),
		zap.Int("exchanges", len(i.InternetExchanges())),
		zap.Int("nodes", len(nodes)),
		zap.Int("parallelism", i.parallelism))

	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.configureJoins(i.reg); err != nil {
			i.logFailure(n, err)
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelism)
	for _, n := range nodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := n.configureCrossConnects(i.reg); err != nil {
				i.logFailure(n, err)
				return err
			}
			i.log.Debug("Configured node",
				zap.Int("asn", n.ASN()),
				zap.String("node", n.Name()),
				zap.Stringer("role", n.Role()),
				zap.Int("interfaces", len(n.Interfaces())))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	i.mu.Lock()
	i.rendered = true
	i.mu.Unlock()

	i.log.Info("Rendered topology",
		zap.Int("cross_connects", len(i.reg.GetByType(registry.ScopeXC, registry.TypeNetwork))))
	return nil
}

func (i *Internet) logFailure(n *Node, err error) {
	i.log.Error("Failed to configure node",
		zap.Int("asn", n.ASN()),
		zap.String("node", n.Name()),
		zap.Error(err))
}

// Package registry is a scoped, typed object store used to resolve names into
// live topology objects.
package registry

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

var (
	ErrNotFound = errors.New("object not found")
	ErrExists   = errors.New("object already registered")
)

// Type distinguishes the kinds of objects stored under one scope.
type Type string

const (
	TypeNetwork     Type = "net"
	TypeRouterNode  Type = "rnode"
	TypeHostNode    Type = "hnode"
	TypeRouteServer Type = "rsnode"
)

const (
	// ScopeIX holds internet exchange networks and their participants.
	ScopeIX = "ix"

	// ScopeXC holds synthesized cross-connect networks.
	ScopeXC = "xc"
)

// ScopeForASN returns the scope name of an autonomous system.
func ScopeForASN(asn int) string {
	return strconv.Itoa(asn)
}

type key struct {
	scope string
	typ   Type
	name  string
}

func (k key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.scope, k.typ, k.name)
}

// Registry is safe for concurrent use. Objects are enumerated in the order
// they were registered.
type Registry struct {
	mu      sync.RWMutex
	objects map[key]any
	order   []key
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		objects: make(map[key]any),
	}
}

// Register stores obj under (scope, typ, name) and returns it.
func (r *Registry) Register(scope string, typ Type, name string, obj any) (any, error) {
	k := key{scope: scope, typ: typ, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[k]; exists {
		return nil, fmt.Errorf("%s: %w", k, ErrExists)
	}
	r.objects[k] = obj
	r.order = append(r.order, k)
	return obj, nil
}

// GetOrRegister returns the object stored under (scope, typ, name), creating
// and storing it with create when absent. The lookup and the insert happen
// under one lock, so concurrent callers agree on a single object. created
// reports whether this call stored it.
func (r *Registry) GetOrRegister(scope string, typ Type, name string, create func() (any, error)) (obj any, created bool, err error) {
	k := key{scope: scope, typ: typ, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.objects[k]; ok {
		return existing, false, nil
	}
	obj, err = create()
	if err != nil {
		return nil, false, err
	}
	r.objects[k] = obj
	r.order = append(r.order, k)
	return obj, true, nil
}

// Get returns the object stored under (scope, typ, name).
func (r *Registry) Get(scope string, typ Type, name string) (any, error) {
	k := key{scope: scope, typ: typ, name: name}

	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
	}
	return obj, nil
}

// Has reports whether an object is stored under (scope, typ, name).
func (r *Registry) Has(scope string, typ Type, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.objects[key{scope: scope, typ: typ, name: name}]
	return ok
}

// GetByType returns all objects of typ in scope, in registration order.
func (r *Registry) GetByType(scope string, typ Type) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []any
	for _, k := range r.order {
		if k.scope == scope && k.typ == typ {
			res = append(res, r.objects[k])
		}
	}
	return res
}

// Scoped returns a view of r bound to one scope.
func (r *Registry) Scoped(scope string) *Scoped {
	return &Scoped{reg: r, scope: scope}
}

// Scoped is a Registry view where every operation uses a fixed scope.
type Scoped struct {
	reg   *Registry
	scope string
}

// Scope returns the bound scope name.
func (s *Scoped) Scope() string { return s.scope }

// Register stores obj under the view's scope.
func (s *Scoped) Register(typ Type, name string, obj any) (any, error) {
	return s.reg.Register(s.scope, typ, name, obj)
}

// Get returns the object registered under the view's scope.
func (s *Scoped) Get(typ Type, name string) (any, error) {
	return s.reg.Get(s.scope, typ, name)
}

// Has reports whether the view's scope holds the key.
func (s *Scoped) Has(typ Type, name string) bool {
	return s.reg.Has(s.scope, typ, name)
}

// GetByType returns every object of typ in the view's scope.
func (s *Scoped) GetByType(typ Type) []any {
	return s.reg.GetByType(s.scope, typ)
}

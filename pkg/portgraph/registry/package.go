package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/portgraph/pkg/portgraph"
)

var (
	// ErrNotRegistered indicates a lookup of an unknown domain or node type.
	ErrNotRegistered = errors.New("not registered")

	// ErrConflict indicates a name or domain is already bound to something else.
	ErrConflict = errors.New("already registered")
)

// Package is a named collection of node factories, the unit a node library
// exports.
type Package struct {
	domain  string
	entries *Registry[string, portgraph.Factory]
}

// NewPackage builds a package from factories. Two factories with the same
// name fail with ErrConflict.
func NewPackage(domain string, factories ...portgraph.Factory) (*Package, error) {
	p := &Package{domain: domain, entries: New[string, portgraph.Factory]()}
	for _, f := range factories {
		if err := p.Add(f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Domain returns the domain the package was built for.
func (p *Package) Domain() string { return p.domain }

// Add registers f under its name.
func (p *Package) Add(f portgraph.Factory) error {
	if f == nil {
		return fmt.Errorf("%s: nil factory", p.domain)
	}
	if _, added := p.entries.RegisterNew(f.Name(), f); !added {
		return fmt.Errorf("%w: %s.%s", ErrConflict, p.domain, f.Name())
	}
	return nil
}

// Update replaces or adds f.
func (p *Package) Update(f portgraph.Factory) {
	p.entries.Register(f.Name(), f)
}

// Get returns the factory registered under name.
func (p *Package) Get(name string) (portgraph.Factory, bool) {
	return p.entries.Get(name)
}

// Names returns the registered names, sorted.
func (p *Package) Names() []string {
	names := p.entries.Keys()
	slices.Sort(names)
	return names
}

// New instantiates the node type name.
func (p *Package) New(name string, opts ...portgraph.Option) (*portgraph.Node, error) {
	f, ok := p.entries.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotRegistered, p.domain, name)
	}
	return f.Instantiate(opts...)
}

// Creator maps domains to packages, so graphs can be assembled from node
// type names alone.
type Creator struct {
	packages *Registry[string, *Package]
}

// NewCreator returns an empty creator.
func NewCreator() *Creator {
	return &Creator{packages: New[string, *Package]()}
}

// Register binds p to domain. Registering the same package again is a
// no-op; a different package under a taken domain fails with ErrConflict.
func (c *Creator) Register(domain string, p *Package) error {
	if p == nil {
		return fmt.Errorf("%s: nil package", domain)
	}
	if existing, added := c.packages.RegisterNew(domain, p); !added && existing != p {
		return fmt.Errorf("%w: domain %s", ErrConflict, domain)
	}
	return nil
}

// Package returns the package bound to domain.
func (c *Creator) Package(domain string) (*Package, bool) {
	return c.packages.Get(domain)
}

// Domains returns the registered domains, sorted.
func (c *Creator) Domains() []string {
	domains := c.packages.Keys()
	slices.Sort(domains)
	return domains
}

// New instantiates the node type name from the package under domain.
func (c *Creator) New(domain, name string, opts ...portgraph.Option) (*portgraph.Node, error) {
	p, ok := c.packages.Get(domain)
	if !ok {
		return nil, fmt.Errorf("%w: domain %s", ErrNotRegistered, domain)
	}
	return p.New(name, opts...)
}

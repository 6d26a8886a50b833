// catalog.go implements the Catalog, which stores provider type descriptors
// keyed by type name. The catalog is populated by init() functions in each
// concrete provider package (blank-imported by main) and is read-mostly
// thereafter: registration happens before the server accepts traffic, so
// concurrent reads need no coordination beyond the RWMutex.
package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog manages the available provider type descriptors.
type Catalog struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		descriptors: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor, validating it first. Registering the same type
// twice overwrites the earlier descriptor.
func (c *Catalog) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors[d.Type] = d
	return nil
}

// Descriptor resolves a type name to its descriptor.
func (c *Catalog) Descriptor(typeName string) (*Descriptor, error) {
	c.mu.RLock()
	d, ok := c.descriptors[typeName]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProviderType, typeName)
	}
	return d, nil
}

// Has checks whether a type name is registered.
func (c *Catalog) Has(typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.descriptors[typeName]
	return ok
}

// All returns every registered descriptor, sorted by type name for stable
// listings.
func (c *Catalog) All() []*Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Descriptor, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// DefaultCatalog is the process-wide catalog populated by provider packages.
var DefaultCatalog = NewCatalog()

// Register adds a descriptor to the default catalog.
func Register(d *Descriptor) error {
	return DefaultCatalog.Register(d)
}

// MustRegister adds a descriptor to the default catalog and panics on a
// validation failure. Intended for init() use, where a bad descriptor is a
// programming error.
func MustRegister(d *Descriptor) {
	if err := DefaultCatalog.Register(d); err != nil {
		panic(err)
	}
}

// factory.go implements the Factory, which resolves a type name to its
// descriptor, validates the supplied configuration, and constructs a live
// Provider instance bound to the requested instance id.
package provider

import (
	"context"
	"log/slog"
)

// Factory creates provider instances from catalog descriptors.
type Factory struct {
	catalog *Catalog
}

// NewFactory creates a factory backed by the given catalog.
func NewFactory(catalog *Catalog) *Factory {
	return &Factory{catalog: catalog}
}

// GetProviderClass resolves a type name to its descriptor without
// constructing an instance.
func (f *Factory) GetProviderClass(typeName string) (*Descriptor, error) {
	return f.catalog.Descriptor(typeName)
}

// GetProvider resolves the descriptor for typeName, validates cfg against its
// required authentication fields, and constructs an instance bound to
// instanceID. A missing or empty required field yields a *ConfigurationError
// before any instance is created; no partially configured instance ever
// escapes.
func (f *Factory) GetProvider(ctx context.Context, instanceID, typeName string, cfg Config) (Provider, error) {
	d, err := f.catalog.Descriptor(typeName)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, field := range d.RequiredAuthFields {
		if cfg.Authentication[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{ProviderType: typeName, Fields: missing}
	}

	p, err := d.New(instanceID, cfg)
	if err != nil {
		return nil, &ConfigurationError{ProviderType: typeName, Reason: err.Error()}
	}

	slog.DebugContext(ctx, "constructed provider instance",
		"provider_type", typeName, "provider_id", instanceID)
	return p, nil
}

// Catalog exposes the backing catalog for read projections.
func (f *Factory) Catalog() *Catalog {
	return f.catalog
}

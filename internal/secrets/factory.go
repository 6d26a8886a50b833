// factory.go implements the secret backend registry and factory, mapping backend
// type strings (postgres, awssm, memory) to constructor functions and dispatching
// NewStore calls.
package secrets

import (
	"database/sql"
	"fmt"

	"github.com/alertdesk/alertdesk/internal/config"
)

// Factory function type for creating secret store backends
type FactoryFunc func(cfg *config.Config, db *sql.DB) (Store, error)

var factories = make(map[string]FactoryFunc)

// Register registers a secret store backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStore creates a secret store backend based on configuration
func NewStore(cfg *config.Config, db *sql.DB) (Store, error) {
	factory, ok := factories[cfg.Secrets.Backend]
	if !ok {
		return nil, fmt.Errorf("unsupported secrets backend: %s (must be 'postgres', 'awssm', or 'memory')", cfg.Secrets.Backend)
	}

	return factory(cfg, db)
}

package attribute

import "go.uber.org/zap"

// Mapper translates attribute names between the API and storage namespaces.
type Mapper struct {
	reg    *Registry
	logger *zap.Logger
}

// NewMapper creates a Mapper over a loaded Registry.
func NewMapper(reg *Registry, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{reg: reg, logger: logger}
}

// Registry returns the underlying registry.
func (m *Mapper) Registry() *Registry { return m.reg }

// ToStorage maps external names to storage names in input order.
// Unknown names are dropped with a warning; duplicates and the synthetic id are skipped.
func (m *Mapper) ToStorage(externals []string) []string {
	out := make([]string, 0, len(externals))
	seen := make(map[string]struct{}, len(externals))
	for _, e := range externals {
		if e == IDField {
			continue
		}
		storage, ok := m.reg.ResolveToStorage(e)
		if !ok {
			m.logger.Warn("Dropping unknown field", zap.String("field", e))
			continue
		}
		if _, dup := seen[storage]; dup {
			continue
		}
		seen[storage] = struct{}{}
		out = append(out, storage)
	}
	return out
}

// ToExternal maps a storage name to its external name. Unmapped names pass through unchanged.
func (m *Mapper) ToExternal(storage string) string {
	return m.reg.ResolveToExternal(storage)
}

// Known reports whether an external name is registered or is the synthetic id.
func (m *Mapper) Known(external string) bool {
	if external == IDField {
		return true
	}
	_, ok := m.reg.byExternal[external]
	return ok
}

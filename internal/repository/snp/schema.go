package snp

import (
	"fmt"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
)

// Schema derives the index definition of an annotation index from the attribute registry.
// Object attributes are not indexed.
func Schema(index string, reg *attribute.Registry) (*db.IndexDefinition, error) {
	b := db.NewIndex(index)
	for _, d := range reg.Descriptors() {
		switch d.Type() {
		case attribute.TypeNumber:
			b.Numeric(d.StorageName())
		case attribute.TypeBoolean:
			b.Boolean(d.StorageName())
		case attribute.TypeDate:
			b.Date(d.StorageName())
		case attribute.TypeText:
			b.Text(d.StorageName())
		}
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build schema for %s: %w", index, err)
	}
	return def, nil
}

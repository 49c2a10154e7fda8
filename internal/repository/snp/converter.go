package snp

import (
	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/attribute"
	domsnp "github.com/USCbiostats/annoq-api-v2/internal/domain/snp"
)

// Converter maps engine hits to records with external field names.
type Converter struct {
	mapper *attribute.Mapper
}

// NewConverter creates a Converter.
func NewConverter(mapper *attribute.Mapper) *Converter {
	return &Converter{mapper: mapper}
}

// ToRecords renames every source field to its external name and attaches the native id.
// Unmapped keys pass through unchanged.
func (c *Converter) ToRecords(hits []db.Hit) []domsnp.Record {
	out := make([]domsnp.Record, 0, len(hits))
	for i := range hits {
		out = append(out, c.toRecord(&hits[i]))
	}
	return out
}

func (c *Converter) toRecord(h *db.Hit) domsnp.Record {
	fields := make(map[string]any, len(h.Source))
	for k, v := range h.Source {
		fields[c.mapper.ToExternal(k)] = v
	}
	return domsnp.NewRecord(h.ID, fields)
}

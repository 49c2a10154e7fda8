package snp

import (
	"encoding/json"
	"maps"
	"slices"
)

// IDField is the synthetic attribute that carries the engine-native record id.
const IDField = "id"

// Record is one annotated variant: its id and external attribute values.
type Record struct {
	id     string
	fields map[string]any
}

// NewRecord copies fields into a new Record. An "id" entry in fields is ignored.
func NewRecord(id string, fields map[string]any) Record {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == IDField {
			continue
		}
		cp[k] = v
	}
	return Record{id: id, fields: cp}
}

// ID returns the native record id.
func (r Record) ID() string { return r.id }

// Get returns one attribute value.
func (r Record) Get(name string) (any, bool) {
	if name == IDField {
		return r.id, true
	}
	v, ok := r.fields[name]
	return v, ok
}

// Fields returns a copy of the attribute values without the id.
func (r Record) Fields() map[string]any { return maps.Clone(r.fields) }

// Names returns the attribute names present on the record, sorted.
func (r Record) Names() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// MarshalJSON encodes the record as a flat object with "id" first-class.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.fields)+1)
	maps.Copy(out, r.fields)
	out[IDField] = r.id
	return json.Marshal(out)
}

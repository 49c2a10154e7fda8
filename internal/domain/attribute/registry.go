package attribute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/domain"
)

// GeneSearchColumns is the curated list of storage fields that carry gene identifiers.
// Entries missing from the searchable set are skipped at load time.
var GeneSearchColumns = []string{
	"ANNOVAR_ensembl_Closest_gene(intergenic_only)",
	"ANNOVAR_ensembl_Gene_ID",
	"ANNOVAR_refseq_Gene_ID",
	"ANNOVAR_refseq_Closest_gene(intergenic_only)",
	"SnpEff_ensembl_Gene_ID",
	"SnpEff_refseq_Gene_ID",
	"VEP_ensembl_Gene_ID",
	"VEP_refseq_Gene_ID",
	"enhancer_linked_genes",
}

// Node is one entry of the attribute definition tree.
type Node struct {
	ID                flexString `json:"id"`
	ParentID          flexString `json:"parent_id"`
	Name              string     `json:"name"`
	Leaf              bool       `json:"leaf"`
	Label             string     `json:"label"`
	Detail            string     `json:"detail"`
	FieldType         string     `json:"field_type"`
	KeywordSearchable bool       `json:"keyword_searchable"`
	Version           flexString `json:"version"`
}

// flexString accepts a JSON string or number; null and absent decode to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode string: %w", err)
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// Registry holds every leaf attribute and the name maps derived from them.
// It is built once and never mutated, so concurrent reads need no locking.
type Registry struct {
	descriptors []Descriptor
	byStorage   map[string]int
	byExternal  map[string]int
	searchable  []string
	geneFields  []string
}

// LoadFile reads the attribute tree from a JSON file.
func LoadFile(path string, logger *zap.Logger) (*Registry, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open attribute tree %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, logger)
}

// Load decodes a JSON array of nodes and builds a Registry.
// Each call returns a fresh Registry; nothing is shared between calls.
func Load(r io.Reader, logger *zap.Logger) (*Registry, error) {
	var nodes []Node
	if err := json.NewDecoder(r).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidAttributeTree, err)
	}
	return New(nodes, logger)
}

// New builds a Registry from decoded nodes.
//
// A node without a version inherits its parent's explicit version. Inheritance is one level:
// a parent that itself only inherits passes nothing on. Two leaves that sanitize to the same
// external name are a fatal error.
func New(nodes []Node, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	explicit := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.ID != "" && n.Version != "" {
			explicit[string(n.ID)] = string(n.Version)
		}
	}

	reg := &Registry{
		byStorage:  make(map[string]int),
		byExternal: make(map[string]int),
	}

	for _, n := range nodes {
		if !n.Leaf {
			continue
		}
		if n.Name == "" {
			return nil, fmt.Errorf("%w: leaf node %q has no name", domain.ErrInvalidAttributeTree, n.ID)
		}

		external := Sanitize(n.Name)
		if external == "" {
			return nil, fmt.Errorf("%w: %q sanitizes to an empty name", domain.ErrInvalidAttributeTree, n.Name)
		}
		if external == IDField {
			return nil, fmt.Errorf("%w: %q collides with the record identifier", domain.ErrDuplicateAttribute, n.Name)
		}
		if prev, ok := reg.byExternal[external]; ok {
			return nil, fmt.Errorf("%w: %q and %q both map to %q",
				domain.ErrDuplicateAttribute, reg.descriptors[prev].storageName, n.Name, external)
		}
		if _, ok := reg.byStorage[n.Name]; ok {
			return nil, fmt.Errorf("%w: %q declared twice", domain.ErrDuplicateAttribute, n.Name)
		}

		version := string(n.Version)
		if version == "" && n.ParentID != "" {
			version = explicit[string(n.ParentID)]
		}

		label := n.Label
		if label == "" {
			label = n.Name
		}

		d := Descriptor{
			storageName:  n.Name,
			externalName: external,
			displayLabel: label,
			definition:   n.Detail,
			declaredType: parseType(n.FieldType),
			searchable:   n.KeywordSearchable,
			version:      version,
		}

		idx := len(reg.descriptors)
		reg.descriptors = append(reg.descriptors, d)
		reg.byStorage[d.storageName] = idx
		reg.byExternal[d.externalName] = idx
		if d.searchable {
			reg.searchable = append(reg.searchable, d.storageName)
		}
	}

	for _, col := range GeneSearchColumns {
		idx, ok := reg.byStorage[col]
		if !ok || !reg.descriptors[idx].searchable {
			logger.Warn("Gene search column not in searchable set, skipping", zap.String("field", col))
			continue
		}
		reg.geneFields = append(reg.geneFields, col)
	}

	logger.Info("Attribute registry loaded",
		zap.Int("attributes", len(reg.descriptors)),
		zap.Int("searchable", len(reg.searchable)),
		zap.Int("gene_fields", len(reg.geneFields)),
	)

	return reg, nil
}

// Len returns the number of registered attributes.
func (r *Registry) Len() int { return len(r.descriptors) }

// Descriptors returns all descriptors in tree order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// ByStorage looks up a descriptor by storage name.
func (r *Registry) ByStorage(storage string) (Descriptor, bool) {
	idx, ok := r.byStorage[storage]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx], true
}

// ByExternal looks up a descriptor by external name.
func (r *Registry) ByExternal(external string) (Descriptor, bool) {
	idx, ok := r.byExternal[external]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx], true
}

// ResolveToStorage returns the storage name for an external name.
func (r *Registry) ResolveToStorage(external string) (string, bool) {
	d, ok := r.ByExternal(external)
	if !ok {
		return "", false
	}
	return d.storageName, true
}

// ResolveToExternal returns the external name for a storage name, or the input unchanged
// when it is not registered.
func (r *Registry) ResolveToExternal(storage string) string {
	if d, ok := r.ByStorage(storage); ok {
		return d.externalName
	}
	return storage
}

// AllExternalNames returns every external name, sorted.
func (r *Registry) AllExternalNames() []string {
	out := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d.externalName)
	}
	sort.Strings(out)
	return out
}

// SearchableExternalNames returns the external names of keyword-searchable attributes, sorted.
func (r *Registry) SearchableExternalNames() []string {
	out := make([]string, 0, len(r.searchable))
	for _, s := range r.searchable {
		out = append(out, r.ResolveToExternal(s))
	}
	sort.Strings(out)
	return out
}

// SearchableFields returns the storage names of keyword-searchable attributes in tree order.
func (r *Registry) SearchableFields() []string {
	out := make([]string, len(r.searchable))
	copy(out, r.searchable)
	return out
}

// GeneSearchFields returns the storage names of the curated gene columns present in the searchable set,
// in curated order.
func (r *Registry) GeneSearchFields() []string {
	out := make([]string, len(r.geneFields))
	copy(out, r.geneFields)
	return out
}

// Versions returns the data source version per external name, for names that have one.
func (r *Registry) Versions(externals []string) map[string]string {
	out := make(map[string]string)
	for _, e := range externals {
		if d, ok := r.ByExternal(e); ok && d.version != "" {
			out[e] = d.version
		}
	}
	return out
}

package db

import "strings"

// IndexBuilder is a fluent builder for index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Field adds a field of the given type.
func (b *IndexBuilder) Field(name string, t IndexFieldType) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: t})
	return b
}

// Text adds an analyzed text field.
func (b *IndexBuilder) Text(name string) *IndexBuilder { return b.Field(name, IndexFieldText) }

// Keyword adds an exact-value field.
func (b *IndexBuilder) Keyword(name string) *IndexBuilder { return b.Field(name, IndexFieldKeyword) }

// Numeric adds a numeric field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder { return b.Field(name, IndexFieldNumeric) }

// Boolean adds a boolean field.
func (b *IndexBuilder) Boolean(name string) *IndexBuilder { return b.Field(name, IndexFieldBoolean) }

// Date adds a date field.
func (b *IndexBuilder) Date(name string) *IndexBuilder { return b.Field(name, IndexFieldDate) }

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a compact debug representation of the schema.
func (idx *IndexDefinition) String() string {
	parts := []string{"INDEX", idx.Name, "SCHEMA"}
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		switch f.Type {
		case IndexFieldText:
			parts = append(parts, "TEXT")
		case IndexFieldKeyword:
			parts = append(parts, "KEYWORD")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldBoolean:
			parts = append(parts, "BOOLEAN")
		case IndexFieldDate:
			parts = append(parts, "DATE")
		}
	}
	return strings.Join(parts, " ")
}

package attribute

// Type is the declared value type of an attribute.
type Type string

// Declared attribute types.
const (
	TypeText    Type = "text"
	TypeNumber  Type = "number"
	TypeDate    Type = "date"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
)

// parseType maps the tree's field_type values onto Type. Unknown or empty values are text.
func parseType(s string) Type {
	switch Type(s) {
	case TypeNumber, TypeDate, TypeBoolean, TypeObject:
		return Type(s)
	case "integer", "float", "double", "long":
		return TypeNumber
	default:
		return TypeText
	}
}

// Descriptor describes one leaf attribute. Immutable after registry construction.
type Descriptor struct {
	storageName  string
	externalName string
	displayLabel string
	definition   string
	declaredType Type
	searchable   bool
	version      string
}

// StorageName returns the field name as stored in the search engine.
func (d Descriptor) StorageName() string { return d.storageName }

// ExternalName returns the API-safe name.
func (d Descriptor) ExternalName() string { return d.externalName }

// DisplayLabel returns the human label, falling back to the storage name.
func (d Descriptor) DisplayLabel() string { return d.displayLabel }

// Definition returns the free-text description (may be empty).
func (d Descriptor) Definition() string { return d.definition }

// Type returns the declared value type.
func (d Descriptor) Type() Type { return d.declaredType }

// Searchable reports whether keyword search covers this attribute.
func (d Descriptor) Searchable() bool { return d.searchable }

// Version returns the data source version, own or inherited from the parent node.
func (d Descriptor) Version() string { return d.version }

// IsText reports whether exact-value operations need the non-analyzed variant.
func (d Descriptor) IsText() bool { return d.declaredType == TypeText }

// IsNumeric reports whether range-style aggregations apply.
func (d Descriptor) IsNumeric() bool { return d.declaredType == TypeNumber }

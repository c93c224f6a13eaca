// Package schema defines the target entity types the import engine reconciles
// files against. Entity types are registered at init time and looked up by
// name; adding a new target entity means adding one registration, nothing
// else changes.
package schema

// FieldType is the semantic type of a target field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldDecimal
	FieldDate
	FieldEmail
	FieldBool
	// FieldReference marks a foreign key resolved by natural key against
	// another entity type.
	FieldReference
)

// String returns a human-readable name for the field type.
func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInteger:
		return "integer"
	case FieldDecimal:
		return "decimal"
	case FieldDate:
		return "date"
	case FieldEmail:
		return "email"
	case FieldBool:
		return "bool"
	case FieldReference:
		return "reference"
	default:
		return "value"
	}
}

// FieldDef describes one target field of an entity type.
type FieldDef struct {
	Name       string    // Canonical field name: "employee_number"
	Type       FieldType // Semantic type used for coercion and validation
	Required   bool      // Row is rejected when no value can be produced
	Aliases    []string  // Accepted source column names besides Name
	References string    // Referenced entity type name when Type is FieldReference
	Signature  bool      // Column strongly associated with this entity (match bonus)
}

// EntityType describes one target entity: its fields, its natural keys and
// the entity types it depends on. Immutable once registered.
type EntityType struct {
	Name      string // Unique identifier: "employee"
	Label     string // Display name: "Employees"
	KeyField  string // Field holding the natural-key code
	NameField string // Field holding the human-readable name (secondary natural key)
	Fields    []FieldDef
	DependsOn []string // Entity types that must be imported first
}

// Field returns the field definition with the given canonical name.
func (e EntityType) Field(name string) (FieldDef, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// RequiredFields returns the names of all required fields in declaration order.
func (e EntityType) RequiredFields() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// References returns the entity types this entity points at through
// foreign-key fields, in field declaration order, without duplicates.
func (e EntityType) References() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range e.Fields {
		if f.Type == FieldReference && f.References != "" && !seen[f.References] {
			seen[f.References] = true
			out = append(out, f.References)
		}
	}
	return out
}

package schema

import (
	"fmt"
	"strings"
)

// ViewField maps a logical field name to a physical "table.column" reference
type ViewField struct {
	Name string
	Ref  string
}

// view is a compiled, immutable view definition
type view struct {
	name   string
	fields []ViewField // registration order is field order
}

// Projection is the compiled output of a view: the exact columns a query may
// read or write for that view
type Projection struct {
	// Fields is the ordered list of logical field names
	Fields []string
	// Columns is the SELECT column list, "table.column AS field" per entry
	Columns string
	// Tables is the source table clause (distinct tables in first-seen order)
	Tables string
}

// Registry holds the declared storage schema and the named views compiled
// against it. Populate at startup, Freeze before serving; reads after that
// need no locking.
type Registry struct {
	tables map[string]map[string]bool // table -> declared column set
	views  map[string]*view
	frozen bool
}

// NewRegistry creates an empty schema registry in registration mode
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]map[string]bool),
		views:  make(map[string]*view),
	}
}

// RegisterTable declares a storage table and its columns. Views may only
// reference declared columns.
func (r *Registry) RegisterTable(name string, columns ...string) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := r.tables[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, name)
	}

	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	r.tables[name] = cols
	return nil
}

// RegisterView registers a named view. Every field reference must resolve to
// a declared column; unknown references fail here, not at query time.
func (r *Registry) RegisterView(name string, fields []ViewField) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := r.views[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateView, name)
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s in view %s", ErrDuplicateField, f.Name, name)
		}
		seen[f.Name] = true

		table, column, ok := splitRef(f.Ref)
		if !ok {
			return fmt.Errorf("%w: %q in view %s", ErrMalformedRef, f.Ref, name)
		}
		cols, exists := r.tables[table]
		if !exists {
			return fmt.Errorf("%w: %s (view %s, field %s)", ErrUnknownTable, table, name, f.Name)
		}
		if !cols[column] {
			return fmt.Errorf("%w: %s.%s (view %s, field %s)", ErrUnknownColumn, table, column, name, f.Name)
		}
	}

	compiled := &view{name: name, fields: make([]ViewField, len(fields))}
	copy(compiled.fields, fields)
	r.views[name] = compiled
	return nil
}

// Freeze ends the registration phase. Further registration attempts fail
// with ErrRegistryFrozen.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Project compiles a view into its column list, source clause, and ordered
// field names. Deterministic: the same view always yields the same output.
func (r *Registry) Project(viewName string) (Projection, error) {
	v, exists := r.views[viewName]
	if !exists {
		return Projection{}, fmt.Errorf("%w: %s", ErrUnknownView, viewName)
	}

	fields := make([]string, 0, len(v.fields))
	columns := make([]string, 0, len(v.fields))
	var tables []string
	seenTables := make(map[string]bool)

	for _, f := range v.fields {
		table, column, _ := splitRef(f.Ref)
		fields = append(fields, f.Name)
		columns = append(columns, fmt.Sprintf("%s.%s AS %s", table, column, f.Name))
		if !seenTables[table] {
			seenTables[table] = true
			tables = append(tables, table)
		}
	}

	return Projection{
		Fields:  fields,
		Columns: strings.Join(columns, ", "),
		Tables:  strings.Join(tables, ", "),
	}, nil
}

// Refs returns the view's ordered field-to-reference mapping. Writers use
// it to translate logical field names back to physical columns.
func (r *Registry) Refs(viewName string) ([]ViewField, error) {
	v, exists := r.views[viewName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, viewName)
	}
	refs := make([]ViewField, len(v.fields))
	copy(refs, v.fields)
	return refs, nil
}

// MapRow filters a raw row down to the view's field names. Excess raw
// columns are dropped; this is what keeps storage columns from leaking
// through a named projection.
func (r *Registry) MapRow(viewName string, raw map[string]interface{}) (map[string]interface{}, error) {
	v, exists := r.views[viewName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, viewName)
	}

	out := make(map[string]interface{}, len(v.fields))
	for _, f := range v.fields {
		if value, ok := raw[f.Name]; ok {
			out[f.Name] = value
		}
	}
	return out, nil
}

// splitRef splits a "table.column" reference
func splitRef(ref string) (table, column string, ok bool) {
	idx := strings.Index(ref, ".")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}

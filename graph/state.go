package graph

// State is the working record that flows through the graph. Keys are field
// names from the pipeline's schema; values are whatever the owning node
// stores under them. A node must treat its input state as read-only and
// return only the fields it changed.
type State map[string]any

// Clone returns a shallow copy of the state. Field values themselves are
// treated as immutable by convention; reducers build new slices rather than
// appending in place.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Reducer determines how a field update is merged into the existing value.
type Reducer func(existing, update any) any

// Field defines a single state field's merge behavior.
type Field struct {
	Reducer Reducer    // Merge policy, OverwriteReducer when nil
	Default func() any // Optional initial value applied on first merge
}

// Schema is the declarative reducer table: a mapping from field name to
// merge policy. Fields not present in the schema are overwritten, matching
// the pipeline convention that only accumulating fields need declaring.
type Schema struct {
	fields map[string]Field
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// AddField registers a field with its merge policy. Chainable.
func (s *Schema) AddField(name string, field Field) *Schema {
	if field.Reducer == nil {
		field.Reducer = OverwriteReducer
	}
	s.fields[name] = field
	return s
}

// ApplyUpdate merges a partial update into state using the registered
// reducers and returns the merged state. The merge is pure: neither input
// is mutated, enabling safe retry and replay in tests.
func (s *Schema) ApplyUpdate(state State, update State) State {
	result := state.Clone()
	for key, updateValue := range update {
		field, declared := s.fields[key]
		if !declared {
			result[key] = updateValue
			continue
		}
		existing, has := result[key]
		if !has && field.Default != nil {
			existing = field.Default()
		}
		result[key] = field.Reducer(existing, updateValue)
	}
	return result
}

// OverwriteReducer replaces the existing value with the update.
func OverwriteReducer(existing, update any) any { return update }

// AppendReducer appends update to the existing []any slice. Non-slice
// inputs fall back to overwrite so a misdeclared field degrades loudly in
// tests rather than silently dropping data.
func AppendReducer(existing, update any) any {
	if existing == nil {
		existing = []any{}
	}
	existingSlice, ok1 := existing.([]any)
	updateSlice, ok2 := update.([]any)
	if !ok1 || !ok2 {
		return update
	}
	merged := make([]any, 0, len(existingSlice)+len(updateSlice))
	merged = append(merged, existingSlice...)
	return append(merged, updateSlice...)
}

// StringSliceReducer appends string slices, building a fresh slice.
func StringSliceReducer(existing, update any) any {
	if existing == nil {
		existing = []string{}
	}
	existingSlice, ok1 := existing.([]string)
	updateSlice, ok2 := update.([]string)
	if !ok1 || !ok2 {
		return update
	}
	merged := make([]string, 0, len(existingSlice)+len(updateSlice))
	merged = append(merged, existingSlice...)
	return append(merged, updateSlice...)
}

// Package metadata defines the entities of the variable catalog: variables,
// category sets, categories, labels and constraints, together with their
// relational invariants.
package metadata

// Variable describes one column of a tabular dataset. Nominal and ordinal
// variables reference a category set; all other data types must not.
// A variable exclusively owns its labels and constraints; the category set is
// shared between variables and has an independent lifetime.
type Variable struct {
	ID            int64        `json:"id,omitempty"`
	Name          string       `json:"name"`
	DataType      DataType     `json:"data_type"`
	CategorySetID *int64       `json:"category_set_id,omitempty"`
	Description   string       `json:"description,omitempty"`
	Reference     string       `json:"reference,omitempty"`
	Labels        []Label      `json:"labels,omitempty"`
	Constraints   []Constraint `json:"constraints,omitempty"`
}

// ConstraintByKind returns the variable's constraint of the given kind, or nil.
// At most one constraint of each kind exists per variable.
func (v *Variable) ConstraintByKind(kind ConstraintKind) *Constraint {
	for i := range v.Constraints {
		if v.Constraints[i].Kind == kind {
			return &v.Constraints[i]
		}
	}
	return nil
}

// VariableUpdate is a partial update: nil fields are left unchanged.
// Changing the data type across the categorical boundary also requires (or
// clears) the category set reference.
type VariableUpdate struct {
	Name          *string
	DataType      *DataType
	CategorySetID *int64
	Description   *string
	Reference     *string
}

// Empty reports whether the update carries no changes.
func (u VariableUpdate) Empty() bool {
	return u.Name == nil && u.DataType == nil && u.CategorySetID == nil &&
		u.Description == nil && u.Reference == nil
}

package validate

import (
	"context"
	"fmt"
	"regexp"

	"varman/internal/metadata"
)

// Refs is the narrow read contract the validator needs for uniqueness and
// reference checks. The catalog implements it against the store; tests use
// in-memory fakes. Validation performs no other reads and never writes.
type Refs interface {
	VariableNameTaken(ctx context.Context, name string) (bool, error)
	CategorySetExists(ctx context.Context, id int64) (bool, error)
	CategorySetNameExists(ctx context.Context, name string) (bool, error)
}

var namePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidName reports whether a name is a lowercase identifier: variables,
// category sets and categories all share this naming rule so exported
// documents stay usable as column names.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

func checkName(r *Result, field, name string) {
	if name == "" {
		r.AddError(field, "name is required")
		return
	}
	if !ValidName(name) {
		r.AddError(field, fmt.Sprintf("name must be a lowercase identifier, got %q", name))
	}
}

// Variable evaluates a proposed variable state. existing is nil when
// creating; on updates it supplies sibling fields the proposal omits and
// suppresses the self-collision on an unchanged name. nested carries a
// category set definition supplied inline (import), which satisfies the
// categorical reference either by resolving to an existing set by name or by
// being a creatable definition itself.
func Variable(ctx context.Context, proposed *metadata.Variable, existing *metadata.Variable, nested *metadata.CategorySet, refs Refs) (*Result, error) {
	r := &Result{}

	// 1. Name: required, well formed, and free on create or rename.
	checkName(r, "name", proposed.Name)
	if proposed.Name != "" && (existing == nil || existing.Name != proposed.Name) {
		taken, err := refs.VariableNameTaken(ctx, proposed.Name)
		if err != nil {
			return nil, fmt.Errorf("check variable name: %w", err)
		}
		if taken {
			r.AddError("name", fmt.Sprintf("variable %q already exists", proposed.Name))
		}
	}

	// 2. Data type.
	dt := proposed.DataType
	if dt == "" && existing != nil {
		dt = existing.DataType
	}
	if dt == "" {
		r.AddError("data_type", "data type is required")
	} else if !dt.Valid() {
		r.AddError("data_type", fmt.Sprintf("data type must be one of %v, got %q", metadata.DataTypes(), dt))
	}

	// 3. Category set coherence.
	setID := proposed.CategorySetID
	if setID == nil && existing != nil {
		setID = existing.CategorySetID
	}
	if dt.Valid() {
		switch {
		case dt.Categorical() && setID == nil && nested == nil:
			r.AddError("category_set", fmt.Sprintf("category set is required for %s variables", dt))
		case !dt.Categorical() && (proposed.CategorySetID != nil || nested != nil):
			r.AddError("category_set", fmt.Sprintf("category set is not applicable to %s variables", dt))
		}
	}
	// Resolve the reference only where one is applicable; an inapplicable
	// set id is already reported above and gets no second finding.
	if setID != nil && (!dt.Valid() || dt.Categorical()) {
		ok, err := refs.CategorySetExists(ctx, *setID)
		if err != nil {
			return nil, fmt.Errorf("check category set: %w", err)
		}
		if !ok {
			r.AddError("category_set", fmt.Sprintf("category set %d does not exist", *setID))
		}
	}
	if nested != nil && dt.Categorical() {
		if err := checkNestedSet(ctx, r, nested, refs); err != nil {
			return nil, err
		}
	}

	// 4 + 5. Constraints: kind/data-type compatibility and well-formedness.
	checkConstraints(r, dt, proposed.Constraints)

	// 6. Labels.
	checkLabels(r, "labels", proposed.Labels)

	return r, nil
}

// checkNestedSet validates an inline category set definition. A definition
// whose name resolves to an existing set is only a reference; its contents
// are ignored. Otherwise it must be creatable as supplied.
func checkNestedSet(ctx context.Context, r *Result, nested *metadata.CategorySet, refs Refs) error {
	checkName(r, "category_set.name", nested.Name)
	if nested.Name != "" {
		exists, err := refs.CategorySetNameExists(ctx, nested.Name)
		if err != nil {
			return fmt.Errorf("check category set name: %w", err)
		}
		if exists {
			return nil
		}
	}
	if len(nested.Categories) == 0 {
		r.AddError("category_set.categories", "categories are required for a new category set")
		return nil
	}
	seen := make(map[string]bool, len(nested.Categories))
	for i, c := range nested.Categories {
		field := fmt.Sprintf("category_set.categories[%d]", i)
		checkName(r, field+".name", c.Name)
		if c.Name != "" && seen[c.Name] {
			r.AddError(field+".name", fmt.Sprintf("duplicate category %q", c.Name))
		}
		seen[c.Name] = true
		checkLabels(r, field+".labels", c.Labels)
	}
	return nil
}

func checkConstraints(r *Result, dt metadata.DataType, constraints []metadata.Constraint) {
	var minVal, maxVal *float64
	seen := make(map[metadata.ConstraintKind]bool, len(constraints))
	for i, c := range constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		if _, err := metadata.ParseConstraintKind(string(c.Kind)); err != nil {
			r.AddError(field, err.Error())
			continue
		}
		if seen[c.Kind] {
			r.AddError(field, fmt.Sprintf("duplicate %s constraint", c.Kind))
		}
		seen[c.Kind] = true
		if dt.Valid() && !c.Kind.CompatibleWith(dt) {
			r.AddError(field, fmt.Sprintf("%s constraint is not applicable to %s variables", c.Kind, dt))
		}
		switch c.Kind {
		case metadata.MinValue:
			v := c.Value
			minVal = &v
		case metadata.MaxValue:
			v := c.Value
			maxVal = &v
		case metadata.Regex:
			if c.Pattern == "" {
				r.AddError(field, "regex constraint requires a pattern")
			} else if _, err := regexp.Compile(c.Pattern); err != nil {
				r.AddError(field, fmt.Sprintf("invalid regex pattern: %v", err))
			}
		}
	}
	if minVal != nil && maxVal != nil && *minVal > *maxVal {
		r.AddError("constraints", fmt.Sprintf("min_value %g exceeds max_value %g", *minVal, *maxVal))
	}
}

func checkLabels(r *Result, field string, labels []metadata.Label) {
	type key struct {
		lang    string
		purpose metadata.Purpose
	}
	seen := make(map[key]bool, len(labels))
	for i, l := range labels {
		lf := fmt.Sprintf("%s[%d]", field, i)
		if l.Text == "" {
			r.AddError(lf+".text", "label text is required")
		}
		if l.LanguageCode == "" {
			r.AddError(lf+".language_code", "language code is required")
		}
		purpose, err := metadata.ParsePurpose(string(l.Purpose))
		if err != nil {
			r.AddError(lf+".purpose", err.Error())
			continue
		}
		k := key{lang: l.LanguageCode, purpose: purpose}
		if l.LanguageCode != "" && seen[k] {
			r.AddError(lf, fmt.Sprintf("duplicate label for language %q and purpose %q", l.LanguageCode, purpose))
		}
		seen[k] = true
	}
}

// CategorySet evaluates a proposed category set. existing is nil when
// creating, in which case the name must be free.
func CategorySet(ctx context.Context, proposed *metadata.CategorySet, existing *metadata.CategorySet, refs Refs) (*Result, error) {
	r := &Result{}
	checkName(r, "name", proposed.Name)
	if proposed.Name != "" && (existing == nil || existing.Name != proposed.Name) {
		taken, err := refs.CategorySetNameExists(ctx, proposed.Name)
		if err != nil {
			return nil, fmt.Errorf("check category set name: %w", err)
		}
		if taken {
			r.AddError("name", fmt.Sprintf("category set %q already exists", proposed.Name))
		}
	}
	seen := make(map[string]bool, len(proposed.Categories))
	for i, c := range proposed.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		checkName(r, field+".name", c.Name)
		if c.Name != "" && seen[c.Name] {
			r.AddError(field+".name", fmt.Sprintf("duplicate category %q", c.Name))
		}
		seen[c.Name] = true
		checkLabels(r, field+".labels", c.Labels)
	}
	return r, nil
}

// Category evaluates a proposed category against its owning set. Name
// uniqueness is scoped to the set.
func Category(proposed *metadata.Category, set *metadata.CategorySet) *Result {
	r := &Result{}
	checkName(r, "name", proposed.Name)
	if proposed.Name != "" && set != nil {
		if c := set.CategoryByName(proposed.Name); c != nil && c.ID != proposed.ID {
			r.AddError("name", fmt.Sprintf("category %q already exists in set %q", proposed.Name, set.Name))
		}
	}
	checkLabels(r, "labels", proposed.Labels)
	return r
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"varman/internal/config"
	"varman/internal/metadata"
	"varman/internal/store"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "catalog"})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return New(st)
}

func mustCreate(t *testing.T, c *Catalog, v *metadata.Variable) *metadata.Variable {
	t.Helper()
	created, err := c.CreateVariable(context.Background(), v)
	if err != nil {
		t.Fatalf("create %q: %v", v.Name, err)
	}
	return created
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	return appErr.Code
}

func TestCreateAndLoadVariable(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	created := mustCreate(t, c, &metadata.Variable{
		Name:        "age",
		DataType:    metadata.Discrete,
		Description: "Age in full years",
		Labels: []metadata.Label{
			{LanguageCode: "en", Text: "Age"},
			{LanguageCode: "de", Text: "Alter"},
		},
		Constraints: []metadata.Constraint{
			{Kind: metadata.MinValue, Value: 0},
			{Kind: metadata.MaxValue, Value: 120},
		},
	})
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	loaded, err := c.VariableByName(ctx, "age")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected variable, got nil")
	}
	if loaded.Description != "Age in full years" {
		t.Fatalf("description: got %q", loaded.Description)
	}
	if len(loaded.Labels) != 2 || len(loaded.Constraints) != 2 {
		t.Fatalf("expected 2 labels and 2 constraints, got %d and %d",
			len(loaded.Labels), len(loaded.Constraints))
	}

	// Absent names load as nil, nil.
	missing, err := c.VariableByName(ctx, "height")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing variable, got %+v", missing)
	}
}

func TestCreateVariableRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	_, err := c.CreateVariable(ctx, &metadata.Variable{Name: "Bad Name", DataType: "integer"})
	if appCode(t, err) != CodeValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}

	mustCreate(t, c, &metadata.Variable{Name: "age", DataType: metadata.Discrete})
	_, err = c.CreateVariable(ctx, &metadata.Variable{Name: "age", DataType: metadata.Text})
	if appCode(t, err) != CodeValidationFailed {
		t.Fatalf("expected duplicate name rejection, got %v", err)
	}
}

func TestCreateCategorical(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	created, err := c.CreateCategorical(ctx, "region", metadata.Nominal,
		[]string{"north", "south", "east", "west"}, "Geographic region", "")
	if err != nil {
		t.Fatalf("create categorical: %v", err)
	}
	if created.CategorySetID == nil {
		t.Fatal("expected category set reference")
	}

	set, err := c.CategorySetByID(ctx, *created.CategorySetID)
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if set.Name != "region" {
		t.Fatalf("set name: got %q", set.Name)
	}
	// Insertion order survives.
	want := []string{"north", "south", "east", "west"}
	if len(set.Categories) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(set.Categories))
	}
	for i, cat := range set.Categories {
		if cat.Name != want[i] {
			t.Fatalf("category %d: got %q, want %q", i, cat.Name, want[i])
		}
	}

	// Non-categorical data type is rejected outright.
	if _, err := c.CreateCategorical(ctx, "age", metadata.Discrete, []string{"a"}, "", ""); err == nil {
		t.Fatal("expected rejection for discrete")
	}
}

func TestUpdateVariablePartial(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	mustCreate(t, c, &metadata.Variable{
		Name: "age", DataType: metadata.Discrete, Description: "old", Reference: "survey q1",
	})

	desc := "Age in full years"
	updated, err := c.UpdateVariable(ctx, "age", metadata.VariableUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != desc {
		t.Fatalf("description: got %q", updated.Description)
	}
	// Untouched fields survive.
	if updated.Reference != "survey q1" || updated.DataType != metadata.Discrete {
		t.Fatalf("unexpected field change: %+v", updated)
	}

	// Rename.
	newName := "age_years"
	updated, err = c.UpdateVariable(ctx, "age", metadata.VariableUpdate{Name: &newName})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if updated.Name != "age_years" {
		t.Fatalf("name: got %q", updated.Name)
	}
	if v, _ := c.VariableByName(ctx, "age"); v != nil {
		t.Fatal("old name still resolves")
	}

	// Missing variable.
	_, err = c.UpdateVariable(ctx, "ghost", metadata.VariableUpdate{Description: &desc})
	if appCode(t, err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateVariableDataTypeSwitchClearsSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	if _, err := c.CreateCategorical(ctx, "region", metadata.Nominal,
		[]string{"north", "south"}, "", ""); err != nil {
		t.Fatalf("create categorical: %v", err)
	}

	dt := metadata.Text
	updated, err := c.UpdateVariable(ctx, "region", metadata.VariableUpdate{DataType: &dt})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CategorySetID != nil {
		t.Fatal("expected category set reference to be cleared")
	}
	// The set itself survives.
	set, err := c.CategorySetByName(ctx, "region")
	if err != nil || set == nil {
		t.Fatalf("expected set to survive, got %v, %v", set, err)
	}
}

func TestDeleteVariableCascades(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	mustCreate(t, c, &metadata.Variable{
		Name: "age", DataType: metadata.Discrete,
		Labels:      []metadata.Label{{LanguageCode: "en", Text: "Age"}},
		Constraints: []metadata.Constraint{{Kind: metadata.MinValue, Value: 0}},
	})

	if err := c.DeleteVariable(ctx, "age"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var labels, constraints int
	if err := c.Store().DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM labels").Scan(&labels); err != nil {
		t.Fatalf("count labels: %v", err)
	}
	if err := c.Store().DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM variable_constraints").Scan(&constraints); err != nil {
		t.Fatalf("count constraints: %v", err)
	}
	if labels != 0 || constraints != 0 {
		t.Fatalf("expected cascade, got %d labels and %d constraints", labels, constraints)
	}

	if err := c.DeleteVariable(ctx, "age"); appCode(t, err) != CodeNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestLabelReplacePolicy(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	mustCreate(t, c, &metadata.Variable{Name: "age", DataType: metadata.Discrete})

	if err := c.AddVariableLabel(ctx, "age", metadata.Label{LanguageCode: "en", Text: "Age"}); err != nil {
		t.Fatalf("add label: %v", err)
	}
	// Same language and purpose replaces the text instead of erroring.
	if err := c.AddVariableLabel(ctx, "age", metadata.Label{LanguageCode: "en", Text: "Age (years)"}); err != nil {
		t.Fatalf("replace label: %v", err)
	}

	v, err := c.VariableByName(ctx, "age")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(v.Labels) != 1 {
		t.Fatalf("expected 1 label, got %d", len(v.Labels))
	}
	if v.Labels[0].Text != "Age (years)" {
		t.Fatalf("label text: got %q", v.Labels[0].Text)
	}

	// Distinct purpose is a separate label.
	if err := c.AddVariableLabel(ctx, "age", metadata.Label{
		LanguageCode: "en", Purpose: metadata.PurposeLong, Text: "Age in full years",
	}); err != nil {
		t.Fatalf("add long label: %v", err)
	}
	v, _ = c.VariableByName(ctx, "age")
	if len(v.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(v.Labels))
	}

	// RemoveVariableLabel rejects ids belonging to other owners.
	if err := c.RemoveVariableLabel(ctx, "age", 9999); appCode(t, err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.RemoveVariableLabel(ctx, "age", v.Labels[0].ID); err != nil {
		t.Fatalf("remove label: %v", err)
	}
	v, _ = c.VariableByName(ctx, "age")
	if len(v.Labels) != 1 {
		t.Fatalf("expected 1 label after removal, got %d", len(v.Labels))
	}
}

func TestSetConstraint(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	mustCreate(t, c, &metadata.Variable{Name: "age", DataType: metadata.Discrete})

	if err := c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.MinValue, Value: 0}); err != nil {
		t.Fatalf("set constraint: %v", err)
	}
	// Same kind replaces.
	if err := c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.MinValue, Value: 18}); err != nil {
		t.Fatalf("replace constraint: %v", err)
	}
	v, _ := c.VariableByName(ctx, "age")
	if len(v.Constraints) != 1 {
		t.Fatalf("expected single constraint, got %+v", v.Constraints)
	}
	if con := v.ConstraintByKind(metadata.MinValue); con == nil || con.Value != 18 {
		t.Fatalf("expected min_value 18, got %+v", con)
	}

	// Kind incompatible with the data type is rejected.
	err := c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.Email})
	if appCode(t, err) != CodeValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}

	if err := c.RemoveConstraint(ctx, "age", metadata.MinValue); err != nil {
		t.Fatalf("remove constraint: %v", err)
	}
	if err := c.RemoveConstraint(ctx, "age", metadata.MinValue); appCode(t, err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetConstraintChecksStoredBound(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	mustCreate(t, c, &metadata.Variable{
		Name: "age", DataType: metadata.Discrete,
		Constraints: []metadata.Constraint{{Kind: metadata.MaxValue, Value: 10}},
	})

	// A minimum above the stored maximum never persists.
	err := c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.MinValue, Value: 20})
	if appCode(t, err) != CodeValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
	v, _ := c.VariableByName(ctx, "age")
	if len(v.Constraints) != 1 || v.Constraints[0].Kind != metadata.MaxValue {
		t.Fatalf("expected stored state untouched, got %+v", v.Constraints)
	}

	// A coherent minimum is accepted.
	if err := c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.MinValue, Value: 5}); err != nil {
		t.Fatalf("set min: %v", err)
	}

	// Replacing a bound is checked against the other stored bound, not
	// against the value being replaced.
	err = c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.MaxValue, Value: 3})
	if appCode(t, err) != CodeValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if err := c.SetConstraint(ctx, "age", metadata.Constraint{Kind: metadata.MaxValue, Value: 80}); err != nil {
		t.Fatalf("replace max: %v", err)
	}
	v, _ = c.VariableByName(ctx, "age")
	if con := v.ConstraintByKind(metadata.MaxValue); con == nil || con.Value != 80 {
		t.Fatalf("expected max 80, got %+v", con)
	}
}

func TestVariablesListing(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	mustCreate(t, c, &metadata.Variable{Name: "weight", DataType: metadata.Continuous})
	mustCreate(t, c, &metadata.Variable{Name: "age", DataType: metadata.Discrete})
	mustCreate(t, c, &metadata.Variable{Name: "comment", DataType: metadata.Text})

	all, err := c.Variables(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Name order.
	want := []string{"age", "comment", "weight"}
	if len(all) != len(want) {
		t.Fatalf("expected %d variables, got %d", len(want), len(all))
	}
	for i, v := range all {
		if v.Name != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, v.Name, want[i])
		}
	}

	dt := metadata.Text
	filtered, err := c.Variables(ctx, &dt)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "comment" {
		t.Fatalf("expected only comment, got %+v", filtered)
	}
}

func TestDeleteCategorySetIntegrity(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	if _, err := c.CreateCategorical(ctx, "region", metadata.Nominal,
		[]string{"north", "south"}, "", ""); err != nil {
		t.Fatalf("create categorical: %v", err)
	}
	if err := c.AddCategoryLabel(ctx, "region", "north",
		metadata.Label{LanguageCode: "en", Text: "North"}); err != nil {
		t.Fatalf("add category label: %v", err)
	}

	// Referenced set cannot be deleted.
	err := c.DeleteCategorySet(ctx, "region")
	if appCode(t, err) != CodeIntegrity {
		t.Fatalf("expected integrity violation, got %v", err)
	}

	// After the referencing variable goes, the delete succeeds and takes
	// categories and their labels with it.
	if err := c.DeleteVariable(ctx, "region"); err != nil {
		t.Fatalf("delete variable: %v", err)
	}
	if err := c.DeleteCategorySet(ctx, "region"); err != nil {
		t.Fatalf("delete set: %v", err)
	}

	var categories, labels int
	if err := c.Store().DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&categories); err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if err := c.Store().DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM labels").Scan(&labels); err != nil {
		t.Fatalf("count labels: %v", err)
	}
	if categories != 0 || labels != 0 {
		t.Fatalf("expected full cascade, got %d categories and %d labels", categories, labels)
	}
}

func TestAddRemoveCategory(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	set, err := c.CreateCategorySet(ctx, &metadata.CategorySet{
		Name:       "status",
		Categories: []metadata.Category{{Name: "active"}},
	})
	if err != nil {
		t.Fatalf("create set: %v", err)
	}
	if len(set.Categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(set.Categories))
	}

	if err := c.AddCategory(ctx, "status", metadata.Category{Name: "retired"}); err != nil {
		t.Fatalf("add category: %v", err)
	}
	// Duplicate name within the set.
	err = c.AddCategory(ctx, "status", metadata.Category{Name: "active"})
	if appCode(t, err) != CodeValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
	// Same name is fine in a different set.
	if _, err := c.CreateCategorySet(ctx, &metadata.CategorySet{
		Name:       "membership",
		Categories: []metadata.Category{{Name: "active"}},
	}); err != nil {
		t.Fatalf("create second set: %v", err)
	}

	if err := c.RemoveCategory(ctx, "status", "active"); err != nil {
		t.Fatalf("remove category: %v", err)
	}
	got, _ := c.CategorySetByName(ctx, "status")
	if len(got.Categories) != 1 || got.Categories[0].Name != "retired" {
		t.Fatalf("expected only retired, got %+v", got.Categories)
	}

	if err := c.RemoveCategory(ctx, "status", "ghost"); appCode(t, err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

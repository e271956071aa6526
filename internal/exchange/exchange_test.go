package exchange

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"varman/internal/catalog"
	"varman/internal/config"
	"varman/internal/metadata"
	"varman/internal/store"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
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
	return catalog.New(st)
}

func TestDecodeDocument(t *testing.T) {
	input := `{
		"age": {"data_type": "discrete", "labels": [{"language_code": "en", "text": "Age"}]},
		"weight": {"data_type": "continuous"},
		"broken": {"data_type": 42}
	}`
	doc, err := DecodeDocument(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc) != 3 {
		t.Fatalf("expected 3 records, got %d", len(doc))
	}
	// Key order is preserved.
	for i, want := range []string{"age", "weight", "broken"} {
		if doc[i].Name != want {
			t.Fatalf("record %d: got %q, want %q", i, doc[i].Name, want)
		}
	}
	// The key is authoritative over any embedded name.
	if doc[0].Variable.Name != "age" {
		t.Fatalf("expected key to set the name, got %q", doc[0].Variable.Name)
	}
	// A malformed record carries its error without failing the document.
	if doc[2].Err == nil {
		t.Fatal("expected decode error on broken record")
	}
	if doc[2].Variable != nil {
		t.Fatal("expected no variable for broken record")
	}

	// Non-object input fails outright.
	if _, err := DecodeDocument(strings.NewReader(`[1, 2]`)); err == nil {
		t.Fatal("expected error for array input")
	}
}

func TestImportBatchCreatesEveryDataType(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	input := `{
		"age": {"data_type": "discrete", "constraints": [{"type": "min_value", "min_value": 0}]},
		"weight": {"data_type": "continuous"},
		"comment": {"data_type": "text", "constraints": [{"type": "regex", "pattern": "^.{0,200}$"}]},
		"region": {
			"data_type": "nominal",
			"category_set": {"name": "regions", "categories": [{"name": "north"}, {"name": "south"}]}
		},
		"rating": {
			"data_type": "ordinal",
			"category_set": {"name": "ratings", "categories": [{"name": "low"}, {"name": "mid"}, {"name": "high"}]},
			"labels": [
				{"language_code": "en", "text": "Rating"},
				{"language_code": "en", "purpose": "long", "text": "Satisfaction rating"}
			]
		}
	}`
	doc, err := DecodeDocument(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	report, err := NewImporter(c).ImportBatch(ctx, doc, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("expected clean import, got %+v", report.Errors)
	}
	if len(report.Created) != 5 {
		t.Fatalf("expected 5 created, got %d", len(report.Created))
	}

	region, err := c.VariableByName(ctx, "region")
	if err != nil || region == nil {
		t.Fatalf("load region: %v, %v", region, err)
	}
	set, err := c.CategorySetByID(ctx, *region.CategorySetID)
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if set.Name != "regions" || len(set.Categories) != 2 {
		t.Fatalf("unexpected set: %+v", set)
	}

	rating, _ := c.VariableByName(ctx, "rating")
	if len(rating.Labels) != 2 {
		t.Fatalf("expected 2 labels on rating, got %d", len(rating.Labels))
	}
}

func TestImportBatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	input := `{
		"age": {"data_type": "discrete"},
		"bad": {"data_type": "integer"},
		"comment": {"data_type": "text"}
	}`
	doc, err := DecodeDocument(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	report, err := NewImporter(c).ImportBatch(ctx, doc, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	// Records before and after the failure both land.
	if len(report.Created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(report.Created))
	}
	if report.Created[0].Name != "age" || report.Created[1].Name != "comment" {
		t.Fatalf("unexpected created order: %+v", report.Created)
	}
	if len(report.Errors) != 1 || report.Errors[0].Variable != "bad" {
		t.Fatalf("expected one error for bad, got %+v", report.Errors)
	}
}

func TestImportBatchDuplicateNameInBatch(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	doc := Document{
		{Name: "age", Variable: &VariableRecord{Name: "age", DataType: "discrete"}},
		{Name: "age", Variable: &VariableRecord{Name: "age", DataType: "continuous"}},
	}
	report, err := NewImporter(c).ImportBatch(ctx, doc, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	// First occurrence wins; the second is an error even with overwrite.
	if len(report.Created) != 1 {
		t.Fatalf("expected 1 created, got %d", len(report.Created))
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Errors[0].Message, "duplicate") {
		t.Fatalf("expected duplicate error, got %+v", report.Errors)
	}
	v, _ := c.VariableByName(ctx, "age")
	if v.DataType != metadata.Discrete {
		t.Fatalf("expected first record to win, got %s", v.DataType)
	}
}

func TestImportBatchDuplicateAfterBrokenRecord(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	// A name whose first occurrence failed to decode still claims the name:
	// the second occurrence is a duplicate, not a fresh import.
	doc := Document{
		{Name: "age", Err: errors.New("json: cannot unmarshal number")},
		{Name: "age", Variable: &VariableRecord{Name: "age", DataType: "discrete"}},
	}
	report, err := NewImporter(c).ImportBatch(ctx, doc, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Created) != 0 {
		t.Fatalf("expected nothing created, got %+v", report.Created)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %+v", report.Errors)
	}
	if !strings.Contains(report.Errors[1].Errors[0].Message, "duplicate") {
		t.Fatalf("expected duplicate error on second occurrence, got %+v", report.Errors[1])
	}
	if v, _ := c.VariableByName(ctx, "age"); v != nil {
		t.Fatalf("expected no variable persisted, got %+v", v)
	}
}

func TestImportOverwrite(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	original, err := c.CreateVariable(ctx, &metadata.Variable{
		Name:     "age",
		DataType: metadata.Discrete,
		Labels:   []metadata.Label{{LanguageCode: "de", Text: "Alter"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	doc := Document{{Name: "age", Variable: &VariableRecord{
		Name:     "age",
		DataType: "continuous",
		Labels:   []LabelRecord{{LanguageCode: "en", Text: "Age"}},
	}}}

	// Without overwrite the collision is a record error and nothing changes.
	report, err := NewImporter(c).ImportBatch(ctx, doc, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected collision error, got %+v", report)
	}
	v, _ := c.VariableByName(ctx, "age")
	if v.DataType != metadata.Discrete {
		t.Fatal("expected variable to be untouched")
	}

	// With overwrite the variable is replaced in place, keeping its id, and
	// stale labels are dropped.
	report, err = NewImporter(c).ImportBatch(ctx, doc, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Overwritten) != 1 || report.Overwritten[0] != "age" {
		t.Fatalf("expected age overwritten, got %+v", report)
	}
	v, _ = c.VariableByName(ctx, "age")
	if v.ID != original.ID {
		t.Fatalf("expected id %d to be preserved, got %d", original.ID, v.ID)
	}
	if v.DataType != metadata.Continuous {
		t.Fatalf("expected continuous, got %s", v.DataType)
	}
	if len(v.Labels) != 1 || v.Labels[0].LanguageCode != "en" {
		t.Fatalf("expected only the new label, got %+v", v.Labels)
	}
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	input := `{
		"region": {
			"data_type": "nominal",
			"description": "Geographic region",
			"category_set": {"name": "regions", "categories": [{"name": "north"}, {"name": "south"}]}
		},
		"age": {
			"data_type": "discrete",
			"constraints": [{"type": "min_value", "min_value": 0}, {"type": "max_value", "max_value": 120}],
			"labels": [{"language_code": "en", "text": "Age"}, {"language_code": "de", "text": "Alter"}]
		}
	}`
	doc, err := DecodeDocument(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report, err := NewImporter(c).ImportBatch(ctx, doc, false); err != nil || len(report.Errors) != 0 {
		t.Fatalf("import: %v, %+v", err, report)
	}

	exported, err := NewExporter(c).ExportBatch(ctx, nil, ShapeExternal)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	// Export-all runs in name order.
	if len(exported) != 2 || exported[0].Name != "age" || exported[1].Name != "region" {
		t.Fatalf("unexpected export order: %+v", exported)
	}

	// The external shape re-imports cleanly into a fresh catalog and
	// exports identically.
	second := newTestCatalog(t)
	if report, err := NewImporter(second).ImportBatch(ctx, exported, false); err != nil || len(report.Errors) != 0 {
		t.Fatalf("re-import: %v, %+v", err, report)
	}
	reExported, err := NewExporter(second).ExportBatch(ctx, nil, ShapeExternal)
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}

	var first, again bytes.Buffer
	if err := EncodeDocument(exported, &first); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := EncodeDocument(reExported, &again); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if first.String() != again.String() {
		t.Fatalf("round trip drifted:\n%s\nvs\n%s", first.String(), again.String())
	}
}

func TestExportShapes(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	if _, err := c.CreateCategorical(ctx, "region", metadata.Nominal, []string{"north"}, "", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	external, err := NewExporter(c).ExportBatch(ctx, []string{"region"}, ShapeExternal)
	if err != nil {
		t.Fatalf("export external: %v", err)
	}
	if external[0].Variable.ID != 0 || external[0].Variable.CategorySetID != nil {
		t.Fatalf("external shape leaked ids: %+v", external[0].Variable)
	}

	internal, err := NewExporter(c).ExportBatch(ctx, []string{"region"}, ShapeInternal)
	if err != nil {
		t.Fatalf("export internal: %v", err)
	}
	if internal[0].Variable.ID == 0 || internal[0].Variable.CategorySet.ID == 0 {
		t.Fatalf("internal shape missing ids: %+v", internal[0].Variable)
	}

	// Unknown names fail the export.
	_, err = NewExporter(c).ExportBatch(ctx, []string{"ghost"}, ShapeExternal)
	var appErr *catalog.AppError
	if !errors.As(err, &appErr) || appErr.Code != catalog.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReadWriteFile(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t)

	if _, err := c.CreateVariable(ctx, &metadata.Variable{Name: "age", DataType: metadata.Discrete}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	doc, err := NewExporter(c).ExportBatch(ctx, nil, ShapeExternal)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	// WriteFile creates missing parent directories.
	path := filepath.Join(t.TempDir(), "out", "variables.json")
	if err := WriteFile(path, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(back) != 1 || back[0].Name != "age" {
		t.Fatalf("unexpected document: %+v", back)
	}
}

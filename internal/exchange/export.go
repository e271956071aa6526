package exchange

import (
	"context"

	"varman/internal/catalog"
	"varman/internal/metadata"
)

// Exporter emits catalog variables as document records.
type Exporter struct {
	catalog *catalog.Catalog
}

func NewExporter(c *catalog.Catalog) *Exporter {
	return &Exporter{catalog: c}
}

// ExportBatch builds a document for the named variables, or for the whole
// catalog in name order when names is empty. Asking for an unknown name is
// an error. Labels and constraints keep insertion order; categories keep
// set order.
func (e *Exporter) ExportBatch(ctx context.Context, names []string, shape Shape) (Document, error) {
	var variables []*metadata.Variable
	if len(names) == 0 {
		all, err := e.catalog.Variables(ctx, nil)
		if err != nil {
			return nil, err
		}
		variables = all
	} else {
		for _, name := range names {
			v, err := e.catalog.VariableByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, catalog.NotFoundError("variable", name)
			}
			variables = append(variables, v)
		}
	}

	doc := make(Document, 0, len(variables))
	for _, v := range variables {
		rec, err := e.toRecord(ctx, v, shape)
		if err != nil {
			return nil, err
		}
		doc = append(doc, Record{Name: v.Name, Variable: rec})
	}
	return doc, nil
}

func (e *Exporter) toRecord(ctx context.Context, v *metadata.Variable, shape Shape) (*VariableRecord, error) {
	rec := &VariableRecord{
		Name:        v.Name,
		DataType:    string(v.DataType),
		Description: v.Description,
		Reference:   v.Reference,
		Constraints: v.Constraints,
	}
	if shape == ShapeInternal {
		rec.ID = v.ID
		rec.CategorySetID = v.CategorySetID
	}
	for _, l := range v.Labels {
		rec.Labels = append(rec.Labels, labelRecord(l, shape))
	}
	if v.CategorySetID != nil {
		set, err := e.catalog.CategorySetByID(ctx, *v.CategorySetID)
		if err != nil {
			return nil, err
		}
		if set != nil {
			rec.CategorySet = categorySetRecord(set, shape)
		}
	}
	return rec, nil
}

func categorySetRecord(set *metadata.CategorySet, shape Shape) *CategorySetRecord {
	out := &CategorySetRecord{Name: set.Name}
	if shape == ShapeInternal {
		out.ID = set.ID
	}
	for _, cat := range set.Categories {
		cr := CategoryRecord{Name: cat.Name}
		if shape == ShapeInternal {
			cr.ID = cat.ID
		}
		for _, l := range cat.Labels {
			cr.Labels = append(cr.Labels, labelRecord(l, shape))
		}
		out.Categories = append(out.Categories, cr)
	}
	return out
}

func labelRecord(l metadata.Label, shape Shape) LabelRecord {
	rec := LabelRecord{
		LanguageCode: l.LanguageCode,
		Purpose:      string(l.Purpose),
		Text:         l.Text,
	}
	if shape == ShapeInternal {
		rec.ID = l.ID
		rec.EntityType = string(l.OwnerType)
		rec.EntityID = l.OwnerID
	}
	return rec
}

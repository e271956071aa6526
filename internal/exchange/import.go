package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"varman/internal/catalog"
	"varman/internal/metadata"
	"varman/internal/validate"
)

// Importer reconciles document records against the persisted catalog.
type Importer struct {
	catalog *catalog.Catalog
}

func NewImporter(c *catalog.Catalog) *Importer {
	return &Importer{catalog: c}
}

// RecordError reports why one record was rejected.
type RecordError struct {
	Variable string           `json:"variable"`
	Errors   []validate.Issue `json:"errors"`
}

// ImportReport is the full outcome of a batch: every record lands in exactly
// one of Created, Errors or Overwritten.
type ImportReport struct {
	ID          uuid.UUID            `json:"id"`
	Created     []*metadata.Variable `json:"created"`
	Errors      []RecordError        `json:"errors"`
	Overwritten []string             `json:"overwritten"`
}

// ImportBatch processes records in document order. Each record is validated
// against the current persisted state and written in its own transaction:
// a rejected or failed record never rolls back its predecessors and never
// aborts the batch. With overwrite, a record whose name already exists
// replaces the stored variable in place, keeping its id; without it, the
// collision is a per-record error. A name appearing twice in the same batch
// is an error on the second occurrence. Only infrastructure failures
// (broken store, failed commit beyond a single record) return a non-nil
// error alongside the partial report.
func (imp *Importer) ImportBatch(ctx context.Context, doc Document, overwrite bool) (*ImportReport, error) {
	report := &ImportReport{ID: uuid.New()}
	seen := make(map[string]bool, len(doc))

	for _, rec := range doc {
		if seen[rec.Name] {
			report.reject(rec.Name, validate.Issue{
				Field:   "name",
				Message: fmt.Sprintf("duplicate variable %q in the same batch", rec.Name),
			})
			continue
		}
		seen[rec.Name] = true
		if rec.Err != nil {
			report.reject(rec.Name, validate.Issue{Field: "general", Message: rec.Err.Error()})
			continue
		}

		if err := imp.importRecord(ctx, rec, overwrite, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (imp *Importer) importRecord(ctx context.Context, rec Record, overwrite bool, report *ImportReport) error {
	existing, err := imp.catalog.VariableByName(ctx, rec.Name)
	if err != nil {
		return fmt.Errorf("look up %q: %w", rec.Name, err)
	}
	if existing != nil && !overwrite {
		report.reject(rec.Name, validate.Issue{
			Field:   "name",
			Message: fmt.Sprintf("variable %q already exists; use overwrite to replace it", rec.Name),
		})
		return nil
	}

	proposed, nested := rec.Variable.toModel()
	result, err := validate.Variable(ctx, proposed, existing, nested, imp.catalog)
	if err != nil {
		return fmt.Errorf("validate %q: %w", rec.Name, err)
	}
	if !result.Valid() {
		report.Errors = append(report.Errors, RecordError{Variable: rec.Name, Errors: result.Errors})
		return nil
	}

	// Resolve the nested set before opening the transaction: sqlite runs
	// on a single connection, so reads cannot go through the pool while a
	// transaction holds it.
	var resolvedSet *metadata.CategorySet
	if nested != nil {
		resolvedSet, err = imp.catalog.CategorySetByName(ctx, nested.Name)
		if err != nil {
			return err
		}
	}

	tx, err := imp.catalog.Store().BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if nested != nil {
		if resolvedSet == nil {
			created, err := imp.catalog.CreateCategorySetTx(ctx, tx, nested)
			if err != nil {
				return rejectRecord(report, rec.Name, err)
			}
			resolvedSet = created
		}
		proposed.CategorySetID = &resolvedSet.ID
	}

	if existing != nil {
		if err := imp.catalog.ReplaceVariableTx(ctx, tx, existing.ID, proposed); err != nil {
			return rejectRecord(report, rec.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %q: %w", rec.Name, err)
		}
		report.Overwritten = append(report.Overwritten, rec.Name)
		return nil
	}

	created, err := imp.catalog.InsertVariableTx(ctx, tx, proposed)
	if err != nil {
		return rejectRecord(report, rec.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %q: %w", rec.Name, err)
	}
	full, err := imp.catalog.VariableByID(ctx, created.ID)
	if err != nil {
		return err
	}
	report.Created = append(report.Created, full)
	return nil
}

// rejectRecord demotes a per-record persistence failure to a record error so
// the batch continues: catalog errors keep their field detail, anything else
// becomes a general issue. The error return is always nil; it exists so call
// sites can return the result directly. Infrastructure failures (begin,
// commit, lookups) are returned by importRecord before reaching here.
func rejectRecord(report *ImportReport, name string, err error) error {
	var appErr *catalog.AppError
	if errors.As(err, &appErr) {
		if len(appErr.Details) > 0 {
			report.Errors = append(report.Errors, RecordError{Variable: name, Errors: appErr.Details})
		} else {
			report.reject(name, validate.Issue{Field: "general", Message: appErr.Message})
		}
		return nil
	}
	report.reject(name, validate.Issue{Field: "general", Message: err.Error()})
	return nil
}

func (r *ImportReport) reject(name string, issues ...validate.Issue) {
	r.Errors = append(r.Errors, RecordError{Variable: name, Errors: issues})
}

// Package exchange implements batch JSON import and export of catalog
// variables. A document maps variable names to their full definitions;
// import reconciles each record against the persisted catalog one at a time.
package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"varman/internal/metadata"
)

// Shape selects between the two wire forms: the internal shape retains
// numeric ids and owner tags, the external shape omits them.
type Shape int

const (
	ShapeExternal Shape = iota
	ShapeInternal
)

type LabelRecord struct {
	ID           int64  `json:"id,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
	EntityID     int64  `json:"entity_id,omitempty"`
	LanguageCode string `json:"language_code"`
	Purpose      string `json:"purpose,omitempty"`
	Text         string `json:"text"`
}

type CategoryRecord struct {
	ID     int64         `json:"id,omitempty"`
	Name   string        `json:"name"`
	Labels []LabelRecord `json:"labels,omitempty"`
}

type CategorySetRecord struct {
	ID         int64            `json:"id,omitempty"`
	Name       string           `json:"name"`
	Categories []CategoryRecord `json:"categories,omitempty"`
}

type VariableRecord struct {
	ID            int64                 `json:"id,omitempty"`
	Name          string                `json:"name"`
	DataType      string                `json:"data_type"`
	CategorySetID *int64                `json:"category_set_id,omitempty"`
	Description   string                `json:"description,omitempty"`
	Reference     string                `json:"reference,omitempty"`
	Labels        []LabelRecord         `json:"labels,omitempty"`
	Constraints   []metadata.Constraint `json:"constraints,omitempty"`
	CategorySet   *CategorySetRecord    `json:"category_set,omitempty"`
}

// Record is one named entry of a document. Err carries a per-record decode
// failure so one malformed record does not abort the batch.
type Record struct {
	Name     string
	Variable *VariableRecord
	Err      error
}

// Document is an ordered sequence of named variable records. Order follows
// the JSON object's key order, which fixes report ordering on import.
type Document []Record

// DecodeDocument parses a JSON object of name to variable definition,
// preserving key order. The name key is authoritative: it overrides any
// conflicting "name" field inside the record. Malformed individual records
// are captured in Record.Err rather than failing the whole document.
func DecodeDocument(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("document must be a JSON object of name to variable definition")
	}

	var doc Document
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode document: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", name, err)
		}
		rec := Record{Name: name}
		var v VariableRecord
		if err := json.Unmarshal(raw, &v); err != nil {
			rec.Err = err
		} else {
			v.Name = name
			rec.Variable = &v
		}
		doc = append(doc, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// EncodeDocument writes the document as an indented JSON object, keeping
// record order.
func EncodeDocument(doc Document, w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rec := range doc {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(rec.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		body, err := json.Marshal(rec.Variable)
		if err != nil {
			return fmt.Errorf("encode record %q: %w", rec.Name, err)
		}
		buf.Write(body)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

// ReadFile decodes a document from a JSON file.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return DecodeDocument(f)
}

// WriteFile encodes a document into a JSON file, creating parent
// directories as needed.
func WriteFile(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	defer f.Close()
	return EncodeDocument(doc, f)
}

// toModel converts a wire record into a variable plus its inline category
// set definition, if any. Purposes stay raw here; validation reports bad
// values and the catalog normalizes on write.
func (r *VariableRecord) toModel() (*metadata.Variable, *metadata.CategorySet) {
	v := &metadata.Variable{
		Name:          r.Name,
		DataType:      metadata.DataType(r.DataType),
		CategorySetID: r.CategorySetID,
		Description:   r.Description,
		Reference:     r.Reference,
		Constraints:   r.Constraints,
	}
	for _, l := range r.Labels {
		v.Labels = append(v.Labels, metadata.Label{
			LanguageCode: l.LanguageCode,
			Purpose:      metadata.Purpose(l.Purpose),
			Text:         l.Text,
		})
	}
	var nested *metadata.CategorySet
	if r.CategorySet != nil {
		nested = &metadata.CategorySet{Name: r.CategorySet.Name}
		for _, cr := range r.CategorySet.Categories {
			cat := metadata.Category{Name: cr.Name}
			for _, l := range cr.Labels {
				cat.Labels = append(cat.Labels, metadata.Label{
					LanguageCode: l.LanguageCode,
					Purpose:      metadata.Purpose(l.Purpose),
					Text:         l.Text,
				})
			}
			nested.Categories = append(nested.Categories, cat)
		}
	}
	return v, nested
}

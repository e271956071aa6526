package metadata

// CategorySet is a named, ordered collection of categories shared between
// variables. Category order is insertion order and defines the default
// display and ordinal order.
type CategorySet struct {
	ID         int64      `json:"id,omitempty"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories,omitempty"`
}

// CategoryByName returns the category with the given name, or nil.
// Names are unique within a set.
func (s *CategorySet) CategoryByName(name string) *Category {
	for i := range s.Categories {
		if s.Categories[i].Name == name {
			return &s.Categories[i]
		}
	}
	return nil
}

// CategoryNames returns the category names in set order.
func (s *CategorySet) CategoryNames() []string {
	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		names[i] = c.Name
	}
	return names
}

// Category is one member of a category set. It exclusively owns its labels.
type Category struct {
	ID            int64   `json:"id,omitempty"`
	CategorySetID int64   `json:"category_set_id,omitempty"`
	Name          string  `json:"name"`
	Labels        []Label `json:"labels,omitempty"`
}

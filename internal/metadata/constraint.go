package metadata

import (
	"encoding/json"
	"fmt"
)

// ConstraintKind identifies one of the closed set of constraint variants.
type ConstraintKind string

const (
	MinValue ConstraintKind = "min_value"
	MaxValue ConstraintKind = "max_value"
	Email    ConstraintKind = "email"
	URL      ConstraintKind = "url"
	Regex    ConstraintKind = "regex"
)

var constraintKinds = []ConstraintKind{MinValue, MaxValue, Email, URL, Regex}

// ConstraintKinds returns all recognized constraint kinds.
func ConstraintKinds() []ConstraintKind {
	out := make([]ConstraintKind, len(constraintKinds))
	copy(out, constraintKinds)
	return out
}

// ParseConstraintKind validates a kind string.
func ParseConstraintKind(s string) (ConstraintKind, error) {
	k := ConstraintKind(s)
	for _, known := range constraintKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown constraint type: %q", s)
}

// Constraint is a tagged variant: Value carries the bound for min_value and
// max_value, Pattern carries the expression for regex. Email and url have no
// parameters.
type Constraint struct {
	Kind    ConstraintKind
	Value   float64
	Pattern string
}

// Numeric reports whether the kind constrains numeric values.
func (k ConstraintKind) Numeric() bool {
	return k == MinValue || k == MaxValue
}

// CompatibleWith reports whether a constraint of kind k may be attached to a
// variable of the given data type. Numeric bounds apply to discrete and
// continuous variables; email, url and regex apply to text variables.
func (k ConstraintKind) CompatibleWith(d DataType) bool {
	if k.Numeric() {
		return d.Numeric()
	}
	return d == Text
}

type constraintJSON struct {
	Type     string   `json:"type"`
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
}

// MarshalJSON emits the tagged wire form, e.g. {"type":"min_value","min_value":0}.
func (c Constraint) MarshalJSON() ([]byte, error) {
	out := constraintJSON{Type: string(c.Kind)}
	switch c.Kind {
	case MinValue:
		v := c.Value
		out.MinValue = &v
	case MaxValue:
		v := c.Value
		out.MaxValue = &v
	case Regex:
		out.Pattern = c.Pattern
	case Email, URL:
	default:
		return nil, fmt.Errorf("unknown constraint type: %q", c.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the tagged wire form.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var raw constraintJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseConstraintKind(raw.Type)
	if err != nil {
		return err
	}
	c.Kind = kind
	c.Value = 0
	c.Pattern = ""
	switch kind {
	case MinValue:
		if raw.MinValue == nil {
			return fmt.Errorf("min_value constraint requires a min_value")
		}
		c.Value = *raw.MinValue
	case MaxValue:
		if raw.MaxValue == nil {
			return fmt.Errorf("max_value constraint requires a max_value")
		}
		c.Value = *raw.MaxValue
	case Regex:
		if raw.Pattern == "" {
			return fmt.Errorf("regex constraint requires a pattern")
		}
		c.Pattern = raw.Pattern
	}
	return nil
}

func (c Constraint) String() string {
	switch c.Kind {
	case MinValue:
		return fmt.Sprintf("minimum value %g", c.Value)
	case MaxValue:
		return fmt.Sprintf("maximum value %g", c.Value)
	case Email:
		return "must be a valid email address"
	case URL:
		return "must be a valid URL"
	case Regex:
		return fmt.Sprintf("must match pattern %s", c.Pattern)
	}
	return string(c.Kind)
}

package metadata

import (
	"encoding/json"
	"testing"
)

func TestConstraintJSONRoundTrip(t *testing.T) {
	cases := []struct {
		in   Constraint
		want string
	}{
		{Constraint{Kind: MinValue, Value: 0}, `{"type":"min_value","min_value":0}`},
		{Constraint{Kind: MaxValue, Value: 120}, `{"type":"max_value","max_value":120}`},
		{Constraint{Kind: Email}, `{"type":"email"}`},
		{Constraint{Kind: URL}, `{"type":"url"}`},
		{Constraint{Kind: Regex, Pattern: "^[A-Z]{2}$"}, `{"type":"regex","pattern":"^[A-Z]{2}$"}`},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.in)
		if err != nil {
			t.Fatalf("marshal %s: %v", tc.in.Kind, err)
		}
		if string(data) != tc.want {
			t.Fatalf("marshal %s: got %s, want %s", tc.in.Kind, data, tc.want)
		}
		var back Constraint
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in.Kind, err)
		}
		if back != tc.in {
			t.Fatalf("round trip %s: got %+v, want %+v", tc.in.Kind, back, tc.in)
		}
	}
}

func TestConstraintUnmarshalRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"unknown type", `{"type":"length"}`},
		{"min_value without bound", `{"type":"min_value"}`},
		{"max_value without bound", `{"type":"max_value"}`},
		{"regex without pattern", `{"type":"regex"}`},
		{"missing type", `{"min_value":3}`},
	}
	for _, tc := range cases {
		var c Constraint
		if err := json.Unmarshal([]byte(tc.json), &c); err == nil {
			t.Fatalf("%s: expected error for %s", tc.name, tc.json)
		}
	}
}

func TestConstraintCompatibility(t *testing.T) {
	// Numeric bounds belong to numeric types only.
	for _, dt := range []DataType{Discrete, Continuous} {
		if !MinValue.CompatibleWith(dt) || !MaxValue.CompatibleWith(dt) {
			t.Fatalf("expected numeric constraints to apply to %s", dt)
		}
		if Email.CompatibleWith(dt) || URL.CompatibleWith(dt) || Regex.CompatibleWith(dt) {
			t.Fatalf("expected text constraints to be rejected for %s", dt)
		}
	}
	// Text constraints belong to text only.
	for _, k := range []ConstraintKind{Email, URL, Regex} {
		if !k.CompatibleWith(Text) {
			t.Fatalf("expected %s to apply to text", k)
		}
	}
	// Categorical types accept nothing.
	for _, dt := range []DataType{Nominal, Ordinal} {
		for _, k := range ConstraintKinds() {
			if k.CompatibleWith(dt) {
				t.Fatalf("expected %s to be rejected for %s", k, dt)
			}
		}
	}
}

func TestParseConstraintKind(t *testing.T) {
	for _, k := range ConstraintKinds() {
		got, err := ParseConstraintKind(string(k))
		if err != nil {
			t.Fatalf("ParseConstraintKind(%s): %v", k, err)
		}
		if got != k {
			t.Fatalf("ParseConstraintKind(%s) = %s", k, got)
		}
	}
	if _, err := ParseConstraintKind("between"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

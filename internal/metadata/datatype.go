package metadata

// DataType classifies what kind of values a variable holds.
type DataType string

const (
	Discrete   DataType = "discrete"
	Continuous DataType = "continuous"
	Nominal    DataType = "nominal"
	Ordinal    DataType = "ordinal"
	Text       DataType = "text"
)

var dataTypes = []DataType{Discrete, Continuous, Nominal, Ordinal, Text}

// DataTypes returns all recognized data types in declaration order.
func DataTypes() []DataType {
	out := make([]DataType, len(dataTypes))
	copy(out, dataTypes)
	return out
}

// Valid reports whether d is one of the recognized data types.
func (d DataType) Valid() bool {
	for _, t := range dataTypes {
		if d == t {
			return true
		}
	}
	return false
}

// Categorical reports whether d requires a category set.
func (d DataType) Categorical() bool {
	return d == Nominal || d == Ordinal
}

// Numeric reports whether d holds numeric values.
func (d DataType) Numeric() bool {
	return d == Discrete || d == Continuous
}

func (d DataType) String() string {
	return string(d)
}

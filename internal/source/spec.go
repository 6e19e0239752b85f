package source

// Logical column names shared by the loader and the normalizer.
const (
	ColTimestamp   = "timestamp"
	ColEnergy      = "energy"
	ColTemperature = "temperature"
	ColPrice       = "price"
)

const (
	DatasetReadings = "readings"
	DatasetPrices   = "prices"
)

// Column maps a logical column onto the header used in the source file.
type Column struct {
	Name   string
	Header string
}

// Spec describes where a dataset lives and how its columns are named.
type Spec struct {
	Name      string
	Location  string
	Delimiter rune
	Columns   []Column
}

// ReadingsSpec returns the descriptor for the consumption export: semicolon
// separated with Time, Energy (kWh) and Temperature columns.
func ReadingsSpec(location string) Spec {
	return Spec{
		Name:      DatasetReadings,
		Location:  location,
		Delimiter: ';',
		Columns: []Column{
			{Name: ColTimestamp, Header: "Time"},
			{Name: ColEnergy, Header: "Energy (kWh)"},
			{Name: ColTemperature, Header: "Temperature"},
		},
	}
}

// PricesSpec returns the descriptor for the spot price export: comma
// separated with Time and Price (cent/kWh) columns.
func PricesSpec(location string) Spec {
	return Spec{
		Name:      DatasetPrices,
		Location:  location,
		Delimiter: ',',
		Columns: []Column{
			{Name: ColTimestamp, Header: "Time"},
			{Name: ColPrice, Header: "Price (cent/kWh)"},
		},
	}
}

// WithHeader returns a copy of s with the header for column name replaced.
func (s Spec) WithHeader(name, header string) Spec {
	cols := make([]Column, len(s.Columns))
	copy(cols, s.Columns)
	for i := range cols {
		if cols[i].Name == name {
			cols[i].Header = header
		}
	}
	s.Columns = cols
	return s
}

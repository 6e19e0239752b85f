package models

import (
	"encoding/json"
	"strconv"
	"time"
)

type Unit string

const (
	UnitKWh           Unit = "kWh"
	UnitEUR           Unit = "EUR"
	UnitCentPerKWh    Unit = "cent/kWh"
	UnitCelsius       Unit = "°C"
	UnitKWhPerEUR     Unit = "kWh/EUR"
	UnitKWhPerCelsius Unit = "kWh/°C"
)

// Quantity is a report value tagged with its unit. Defined is false when the
// value could not be computed (division by zero, stddev of one sample).
type Quantity struct {
	Value   float64
	Unit    Unit
	Defined bool
}

func Defined(v float64, unit Unit) Quantity {
	return Quantity{Value: v, Unit: unit, Defined: true}
}

func Undefined(unit Unit) Quantity {
	return Quantity{Unit: unit}
}

func (q Quantity) String() string {
	if !q.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(q.Value, 'f', -1, 64) + " " + string(q.Unit)
}

// Format renders the value with a fixed number of decimals.
func (q Quantity) Format(decimals int) string {
	if !q.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(q.Value, 'f', decimals, 64) + " " + string(q.Unit)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	out := struct {
		Value   *float64 `json:"value"`
		Unit    Unit     `json:"unit"`
		Defined bool     `json:"defined"`
	}{Unit: q.Unit, Defined: q.Defined}
	if q.Defined {
		v := q.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// SeriesStats holds the descriptive statistics of one bucket column.
type SeriesStats struct {
	Mean   Quantity `json:"mean"`
	Median Quantity `json:"median"`
	StdDev Quantity `json:"std_dev"`
	Min    Quantity `json:"min"`
	Max    Quantity `json:"max"`
}

// Report is the statistics summary of the buckets in [Start, End].
type Report struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`

	TotalEnergy Quantity `json:"total_energy"`
	TotalBill   Quantity `json:"total_bill"`

	Energy      SeriesStats `json:"energy"`
	Bill        SeriesStats `json:"bill"`
	Price       SeriesStats `json:"price"`
	Temperature SeriesStats `json:"temperature"`

	PeakPriceAt  time.Time `json:"peak_price_at"`
	PeakEnergyAt time.Time `json:"peak_energy_at"`

	EnergyToBillRatio    Quantity `json:"energy_to_bill_ratio"`
	ConsumptionPerDegree Quantity `json:"consumption_per_degree"`
	PriceRange           Quantity `json:"price_range"`
}

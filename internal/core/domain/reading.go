package domain

import (
	"time"

	"github.com/google/uuid"
)

// Time-of-day constants in milliseconds
const (
	FifteenMinutes  int64 = 900000
	ThirtyMinutes   int64 = 1800000
	TwentyFourHours int64 = 86400000
)

// GlucoseReading is a stored continuous blood glucose (CBG) measurement
type GlucoseReading struct {
	PatientID uuid.UUID `json:"patient_id"`
	Time      time.Time `json:"time"`  // UTC instant of the measurement
	Value     float64   `json:"value"` // Glucose value expressed in Unit
	Unit      Unit      `json:"unit"`  // mg/dL or mmol/L
}

// Reading is one glucose value positioned on a 24-hour axis.
// MsPer24 is the offset since local midnight, in [0, 86400000).
type Reading struct {
	MsPer24 int64   `json:"msPer24"`
	Value   float64 `json:"value"`
}

// Slice holds the order statistics of all readings falling in one
// 30-minute bucket of the day. MsFrom and MsTo are MsX -/+ 15 minutes.
type Slice struct {
	ID                string  `json:"id"`
	MsX               int64   `json:"msX"`
	MsFrom            int64   `json:"msFrom"`
	MsTo              int64   `json:"msTo"`
	Min               float64 `json:"min"`
	TenthQuantile     float64 `json:"tenthQuantile"`
	FirstQuartile     float64 `json:"firstQuartile"`
	Median            float64 `json:"median"`
	ThirdQuartile     float64 `json:"thirdQuartile"`
	NinetiethQuantile float64 `json:"ninetiethQuantile"`
	Max               float64 `json:"max"`
}

// IsValidGlucoseUnit checks if a unit can carry a glucose value
func IsValidGlucoseUnit(unit Unit) bool {
	return unit == UnitMilligramPerDeciliter || unit == UnitMmolPerLiter
}

// MgdlPerMmol is the mg/dL to mmol/L conversion factor of glucose
const MgdlPerMmol = 18.0182

// ConvertGlucose converts a glucose value between mg/dL and mmol/L
func ConvertGlucose(value float64, from, to Unit) float64 {
	switch {
	case from == to:
		return value
	case from == UnitMmolPerLiter && to == UnitMilligramPerDeciliter:
		return value * MgdlPerMmol
	case from == UnitMilligramPerDeciliter && to == UnitMmolPerLiter:
		return value / MgdlPerMmol
	}
	return value
}

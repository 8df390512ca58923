package domain

import (
	"time"

	"github.com/google/uuid"
)

// Unit represents the unit of a device parameter or measurement value
type Unit string

const (
	UnitPercent               Unit = "%"
	UnitMinute                Unit = "min"
	UnitGram                  Unit = "g"
	UnitKilogram              Unit = "kg"
	UnitInsulinUnit           Unit = "U"
	UnitMmolPerLiter          Unit = "mmol/L"
	UnitMilligramPerDeciliter Unit = "mg/dL"
	UnitInsulinUnitPerGram    Unit = "U/g"
)

// ChangeType represents the nature of a parameter change event
type ChangeType string

const (
	ChangeTypeAdded   ChangeType = "added"
	ChangeTypeUpdated ChangeType = "updated"
	ChangeTypeDeleted ChangeType = "deleted"
)

// IsValidChangeType checks if a change type is one of added, updated or deleted
func IsValidChangeType(changeType ChangeType) bool {
	switch changeType {
	case ChangeTypeAdded, ChangeTypeUpdated, ChangeTypeDeleted:
		return true
	}
	return false
}

// Parameter represents one historized device configuration change
type Parameter struct {
	Name          string     `json:"name"`
	Value         string     `json:"value"`
	Unit          Unit       `json:"unit"`
	Level         int        `json:"level"`
	EffectiveDate string     `json:"effectiveDate"` // ISO-8601
	ChangeType    ChangeType `json:"changeType"`
}

// ChangeDateParameterGroup groups all parameter changes recorded at one date
type ChangeDateParameterGroup struct {
	ChangeDate string      `json:"changeDate"`
	Parameters []Parameter `json:"parameters"`
}

// HistorizedParameter is a display row of the parameter history table.
// Rows with IsGroupedParameterHeader set are date separators: they carry
// level 0, an empty name and the formatted latest date of their group.
type HistorizedParameter struct {
	Parameter
	RawData                       string     `json:"rawData"`
	ParameterDate                 string     `json:"parameterDate"`
	PreviousValue                 string     `json:"previousValue,omitempty"`
	PreviousUnit                  Unit       `json:"previousUnit,omitempty"`
	IsGroupedParameterHeader      bool       `json:"isGroupedParameterHeader"`
	GroupedParameterHeaderContent string     `json:"groupedParameterHeaderContent,omitempty"`
	LatestDate                    *time.Time `json:"latestDate,omitempty"` // separator rows only
}

// TimePrefs carries the display timezone preferences of the viewer
type TimePrefs struct {
	TimezoneAware bool   `json:"timezoneAware"`
	TimezoneName  string `json:"timezoneName,omitempty"`
}

// ParameterChange is one stored row of a patient's parameter history
type ParameterChange struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ChangeDate string    `json:"change_date"`
	Parameter
	CreatedAt time.Time `json:"created_at"`
}

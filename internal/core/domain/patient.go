package domain

import (
	"time"

	"github.com/google/uuid"
)

// Patient represents a person whose glucose data and device parameters are
// followed. Timezone is the IANA name used when a viewer does not send one.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	Timezone  string    `json:"timezone"`
	BgUnit    Unit      `json:"bg_unit"` // mg/dL or mmol/L
	CreatedAt time.Time `json:"created_at"`
}

// TimePrefs returns timezone-aware preferences in the patient's own timezone
func (p *Patient) TimePrefs() TimePrefs {
	if p.Timezone == "" {
		return TimePrefs{}
	}
	return TimePrefs{TimezoneAware: true, TimezoneName: p.Timezone}
}

package resolver

import (
	"time"

	"github.com/ehr/ptl/internal/domain/appointment"
	"github.com/ehr/ptl/internal/domain/mdt"
	"github.com/ehr/ptl/internal/domain/pathway"
)

// Source names a module the resolver queries.
type Source string

const (
	SourcePTL          Source = "PTL"
	SourceCancer       Source = "Cancer"
	SourceMDT          Source = "MDT"
	SourceAppointments Source = "Appointments"
)

// sourceOrder is the fixed priority used for tie-breaks and display names.
var sourceOrder = []Source{SourcePTL, SourceCancer, SourceMDT, SourceAppointments}

func (s Source) rank() int {
	for i, o := range sourceOrder {
		if o == s {
			return i
		}
	}
	return len(sourceOrder)
}

type TimelineEntry struct {
	Date        time.Time `json:"date"`
	Source      Source    `json:"source"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
}

// PathwayView is a pathway entry with its assessment at resolution time.
type PathwayView struct {
	Entity     *pathway.TrackedEntity   `json:"entity"`
	Assessment pathway.BreachAssessment `json:"assessment"`
	Score      float64                  `json:"score"`
}

// UnifiedPatientView is a read-only projection built fresh per query.
type UnifiedPatientView struct {
	PatientID    string                `json:"patient_id"`
	DisplayName  string                `json:"display_name,omitempty"`
	FoundIn      []Source              `json:"found_in"`
	PTL          *PathwayView          `json:"ptl,omitempty"`
	Cancer       *PathwayView          `json:"cancer,omitempty"`
	Discussions  []mdt.Summary         `json:"mdt_discussions"`
	Appointments []appointment.Summary `json:"appointments"`
	Timeline     []TimelineEntry       `json:"timeline"`
	Degraded     bool                  `json:"degraded"`
	Unavailable  []Source              `json:"unavailable_sources,omitempty"`
	AsOf         time.Time             `json:"as_of"`
}

package pathway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// List names one of the independently maintained pathway lists.
type List string

const (
	ListPTL    List = "ptl"
	ListCancer List = "cancer"
)

func (l List) Valid() bool {
	return l == ListPTL || l == ListCancer
}

// PathwayKind selects the regulatory target a clock is measured against.
type PathwayKind string

const (
	Routine18Week PathwayKind = "routine-18-week"
	TwoWeekWait   PathwayKind = "two-week-wait"
	ThirtyOneDay  PathwayKind = "31-day"
	SixtyTwoDay   PathwayKind = "62-day"
)

// Priority is the referral priority tag.
type Priority string

const (
	PriorityRoutine     Priority = "routine"
	PriorityUrgent      Priority = "urgent"
	PriorityTwoWeekWait Priority = "two-week-wait"
	PriorityCancer62Day Priority = "cancer-62-day"
	PriorityEmergency   Priority = "emergency"
)

var validPriorities = map[Priority]bool{
	PriorityRoutine: true, PriorityUrgent: true, PriorityTwoWeekWait: true,
	PriorityCancer62Day: true, PriorityEmergency: true,
}

// ClockStatus is the running state of a pathway clock.
type ClockStatus string

const (
	ClockActive  ClockStatus = "active"
	ClockPaused  ClockStatus = "paused"
	ClockStopped ClockStatus = "stopped"
)

// Event codes with engine semantics. Any other code is recorded as-is.
const (
	CodeInitialReferral          = "initial-referral"
	CodeClockReset               = "clock-reset"
	CodeClockPaused              = "clock-paused"
	CodeClockResumed             = "clock-resumed"
	CodeTreatmentStarted         = "treatment-started"
	CodeFirstDefinitiveTreatment = "first-definitive-treatment"
	CodeClockStop                = "clock-stop"
	CodeDischarged               = "discharged"
	CodeDeceased                 = "deceased"
	CodeArchived                 = "archived"
)

var terminalCodes = map[string]bool{
	CodeTreatmentStarted:         true,
	CodeFirstDefinitiveTreatment: true,
	CodeClockStop:                true,
	CodeDischarged:               true,
	CodeDeceased:                 true,
	CodeArchived:                 true,
}

// IsTerminal reports whether an event code stops the pathway clock.
func IsTerminal(code string) bool {
	return terminalCodes[code]
}

// EventRecord is one immutable fact in an entity's history.
type EventRecord struct {
	ID          uuid.UUID `json:"id"`
	Date        time.Time `json:"date"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
}

// TrackedEntity is one patient's presence on one pathway list.
type TrackedEntity struct {
	ID                 uuid.UUID                  `json:"id"`
	List               List                       `json:"list"`
	PatientID          string                     `json:"patient_id"`
	DisplayName        string                     `json:"display_name"`
	PathwayKind        PathwayKind                `json:"pathway_kind"`
	Priority           Priority                   `json:"priority"`
	ClockStartDate     time.Time                  `json:"clock_start_date"`
	ClockStatus        ClockStatus                `json:"clock_status"`
	CurrentStatusLabel string                     `json:"current_status_label,omitempty"`
	LastUpdated        time.Time                  `json:"last_updated"`
	Archived           bool                       `json:"archived"`
	Version            int                        `json:"version"`
	Events             []EventRecord              `json:"events"`
	Extensions         map[string]json.RawMessage `json:"extensions,omitempty"`
}

// Clone returns a deep copy so stores never hand out shared state.
func (e *TrackedEntity) Clone() *TrackedEntity {
	if e == nil {
		return nil
	}
	c := *e
	c.Events = append([]EventRecord(nil), e.Events...)
	if e.Extensions != nil {
		c.Extensions = make(map[string]json.RawMessage, len(e.Extensions))
		for k, v := range e.Extensions {
			c.Extensions[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// Monitored reports whether the re-evaluator should classify this entity.
func (e *TrackedEntity) Monitored() bool {
	return !e.Archived && e.ClockStatus == ClockActive
}

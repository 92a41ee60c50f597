package mdt

import (
	"time"

	"github.com/google/uuid"
)

// Discussion maps to the mdt_discussion table: one case discussed at one
// multidisciplinary team meeting.
type Discussion struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   string    `db:"patient_id" json:"patient_id"`
	PatientName string    `db:"patient_name" json:"patient_name,omitempty"`
	MeetingDate time.Time `db:"meeting_date" json:"meeting_date"`
	Specialty   string    `db:"specialty" json:"specialty"`
	Diagnosis   string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Outcome     *string   `db:"outcome" json:"outcome,omitempty"`
	Decided     bool      `db:"decided" json:"decided"`
	RecordedBy  string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Summary is the view of a discussion shared with other modules.
type Summary struct {
	MeetingDate time.Time `json:"meeting_date"`
	Specialty   string    `json:"specialty"`
	Diagnosis   string    `json:"diagnosis,omitempty"`
	Outcome     *string   `json:"outcome,omitempty"`
	Decided     bool      `json:"decided"`
	PatientName string    `json:"patient_name,omitempty"`
}

func (d *Discussion) Summary() Summary {
	return Summary{
		MeetingDate: d.MeetingDate,
		Specialty:   d.Specialty,
		Diagnosis:   d.Diagnosis,
		Outcome:     d.Outcome,
		Decided:     d.Decided,
		PatientName: d.PatientName,
	}
}

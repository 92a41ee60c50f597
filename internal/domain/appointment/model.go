package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusProposed  = "proposed"
	StatusBooked    = "booked"
	StatusArrived   = "arrived"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
	StatusNoShow    = "noshow"
)

var validStatuses = map[string]bool{
	StatusProposed: true, StatusBooked: true, StatusArrived: true,
	StatusFulfilled: true, StatusCancelled: true, StatusNoShow: true,
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   string    `db:"patient_id" json:"patient_id"`
	PatientName string    `db:"patient_name" json:"patient_name,omitempty"`
	Date        time.Time `db:"appointment_date" json:"date"`
	Type        string    `db:"appointment_type" json:"type"`
	Status      string    `db:"status" json:"status"`
	Specialty   string    `db:"specialty" json:"specialty,omitempty"`
	BookedBy    string    `db:"booked_by" json:"booked_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Summary is the view of an appointment shared with other modules.
type Summary struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Specialty   string    `json:"specialty,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
}

func (a *Appointment) Summary() Summary {
	return Summary{
		Date:        a.Date,
		Type:        a.Type,
		Status:      a.Status,
		Specialty:   a.Specialty,
		PatientName: a.PatientName,
	}
}

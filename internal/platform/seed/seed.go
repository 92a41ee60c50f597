// Package seed loads demo fixtures from YAML through the domain services, so
// seeded data passes the same validation as API input.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ehr/ptl/internal/domain/appointment"
	"github.com/ehr/ptl/internal/domain/mdt"
	"github.com/ehr/ptl/internal/domain/pathway"
)

type Fixture struct {
	Actor          string               `yaml:"actor"`
	Pathways       []PathwayFixture     `yaml:"pathways"`
	MDTDiscussions []DiscussionFixture  `yaml:"mdt_discussions"`
	Appointments   []AppointmentFixture `yaml:"appointments"`
}

// PathwayFixture sets the clock start either absolutely or as a number of
// days before the load time. DaysAgo wins when both are set.
type PathwayFixture struct {
	List           string         `yaml:"list"`
	PatientID      string         `yaml:"patient_id"`
	DisplayName    string         `yaml:"display_name"`
	PathwayKind    string         `yaml:"pathway_kind"`
	Priority       string         `yaml:"priority"`
	ClockStartDate time.Time      `yaml:"clock_start_date"`
	DaysAgo        *int           `yaml:"days_ago"`
	StatusLabel    string         `yaml:"status_label"`
	Events         []EventFixture `yaml:"events"`
}

type EventFixture struct {
	Code        string `yaml:"code"`
	DaysAgo     int    `yaml:"days_ago"`
	Description string `yaml:"description"`
	StatusLabel string `yaml:"status_label"`
}

type DiscussionFixture struct {
	PatientID   string  `yaml:"patient_id"`
	PatientName string  `yaml:"patient_name"`
	DaysAgo     int     `yaml:"days_ago"`
	Specialty   string  `yaml:"specialty"`
	Diagnosis   string  `yaml:"diagnosis"`
	Outcome     *string `yaml:"outcome"`
}

type AppointmentFixture struct {
	PatientID   string `yaml:"patient_id"`
	PatientName string `yaml:"patient_name"`
	// negative values are in the future
	DaysAgo   int    `yaml:"days_ago"`
	Type      string `yaml:"type"`
	Status    string `yaml:"status"`
	Specialty string `yaml:"specialty"`
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

func ParseFile(path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

type Services struct {
	Pathways     *pathway.Service
	MDT          *mdt.Service
	Appointments *appointment.Service
}

type Result struct {
	Pathways     int `json:"pathways"`
	Events       int `json:"events"`
	Discussions  int `json:"mdt_discussions"`
	Appointments int `json:"appointments"`
}

const defaultActor = "seed"

// Load writes every fixture record through svcs. It stops at the first error
// and reports what was written so far.
func Load(ctx context.Context, f *Fixture, svcs Services) (Result, error) {
	var res Result
	actor := f.Actor
	if actor == "" {
		actor = defaultActor
	}
	now := svcs.Pathways.Now()
	daysAgo := func(n int) time.Time { return now.AddDate(0, 0, -n) }

	for i, p := range f.Pathways {
		e := &pathway.TrackedEntity{
			PatientID:          p.PatientID,
			DisplayName:        p.DisplayName,
			PathwayKind:        pathway.PathwayKind(p.PathwayKind),
			Priority:           pathway.Priority(p.Priority),
			ClockStartDate:     p.ClockStartDate,
			CurrentStatusLabel: p.StatusLabel,
		}
		if p.DaysAgo != nil {
			e.ClockStartDate = daysAgo(*p.DaysAgo)
		}
		list := pathway.List(p.List)
		if err := svcs.Pathways.CreateEntry(ctx, list, e, actor); err != nil {
			return res, fmt.Errorf("pathway %d (%s): %w", i, p.PatientID, err)
		}
		res.Pathways++
		for j, ev := range p.Events {
			_, err := svcs.Pathways.AppendEvent(ctx, list, e.ID, pathway.StatusUpdate{
				Date:        daysAgo(ev.DaysAgo),
				Code:        ev.Code,
				Description: ev.Description,
				StatusLabel: ev.StatusLabel,
			}, actor)
			if err != nil {
				return res, fmt.Errorf("pathway %d event %d: %w", i, j, err)
			}
			res.Events++
		}
	}

	for i, d := range f.MDTDiscussions {
		rec := &mdt.Discussion{
			PatientID:   d.PatientID,
			PatientName: d.PatientName,
			MeetingDate: daysAgo(d.DaysAgo),
			Specialty:   d.Specialty,
			Diagnosis:   d.Diagnosis,
			Outcome:     d.Outcome,
		}
		if err := svcs.MDT.RecordDiscussion(ctx, rec, actor); err != nil {
			return res, fmt.Errorf("mdt discussion %d: %w", i, err)
		}
		res.Discussions++
	}

	for i, a := range f.Appointments {
		rec := &appointment.Appointment{
			PatientID:   a.PatientID,
			PatientName: a.PatientName,
			Date:        daysAgo(a.DaysAgo),
			Type:        a.Type,
			Status:      a.Status,
			Specialty:   a.Specialty,
		}
		if err := svcs.Appointments.Book(ctx, rec, actor); err != nil {
			return res, fmt.Errorf("appointment %d: %w", i, err)
		}
		res.Appointments++
	}
	return res, nil
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/ptl/internal/domain/appointment"
	"github.com/ehr/ptl/internal/domain/mdt"
	"github.com/ehr/ptl/internal/domain/pathway"
)

// PathwayLookup is satisfied by pathway.Store.
type PathwayLookup interface {
	GetByPatient(ctx context.Context, patientID string) (*pathway.TrackedEntity, error)
}

type DiscussionLookup interface {
	DiscussionsFor(ctx context.Context, patientID string) ([]mdt.Summary, error)
}

type AppointmentLookup interface {
	AppointmentsFor(ctx context.Context, patientID string) ([]appointment.Summary, error)
}

const DefaultTimeout = 2 * time.Second

type Resolver struct {
	ptl     PathwayLookup
	cancer  PathwayLookup
	mdt     DiscussionLookup
	appts   AppointmentLookup
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

func New(ptl, cancer PathwayLookup, discussions DiscussionLookup, appts AppointmentLookup, logger zerolog.Logger) *Resolver {
	return &Resolver{
		ptl:     ptl,
		cancer:  cancer,
		mdt:     discussions,
		appts:   appts,
		timeout: DefaultTimeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTimeout sets the per-collaborator deadline.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	if d > 0 {
		r.timeout = d
	}
	return r
}

func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

type sourceResult struct {
	entity       *pathway.TrackedEntity
	discussions  []mdt.Summary
	appointments []appointment.Summary
	found        bool
	err          error
}

// Resolve queries every module concurrently and merges the matches. A source
// that fails or times out counts as a miss and marks the view degraded; only
// a miss everywhere returns a *NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, rawID string) (*UnifiedPatientView, error) {
	id := pathway.NormalizeID(rawID)
	if id == "" {
		return nil, &NotFoundError{PatientID: rawID}
	}

	results := make([]sourceResult, len(sourceOrder))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sourceOrder {
		i, src := i, src
		g.Go(func() error {
			results[i] = r.queryWithTimeout(gctx, src, id)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := r.now()
	view := &UnifiedPatientView{
		PatientID:    id,
		FoundIn:      []Source{},
		Discussions:  []mdt.Summary{},
		Appointments: []appointment.Summary{},
		Timeline:     []TimelineEntry{},
		AsOf:         now,
	}
	for i, src := range sourceOrder {
		res := results[i]
		if res.err != nil {
			view.Degraded = true
			view.Unavailable = append(view.Unavailable, src)
			r.logger.Warn().Err(res.err).
				Str("source", string(src)).
				Str("patient_id", id).
				Msg("collaborator unavailable during resolution")
			continue
		}
		if !res.found {
			continue
		}
		view.FoundIn = append(view.FoundIn, src)
		r.merge(view, src, res, now)
	}

	if len(view.FoundIn) == 0 {
		return nil, &NotFoundError{PatientID: id, Unavailable: view.Unavailable}
	}

	sort.SliceStable(view.Timeline, func(i, j int) bool {
		a, b := view.Timeline[i], view.Timeline[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Source.rank() < b.Source.rank()
	})
	return view, nil
}

// queryWithTimeout bounds a single collaborator call. A late answer from a
// collaborator that ignores its context is dropped.
func (r *Resolver) queryWithTimeout(ctx context.Context, src Source, id string) sourceResult {
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ch := make(chan sourceResult, 1)
	go func() {
		ch <- r.query(qctx, src, id)
	}()
	select {
	case res := <-ch:
		return res
	case <-qctx.Done():
		return sourceResult{err: fmt.Errorf("%s: %w", src, qctx.Err())}
	}
}

func (r *Resolver) query(ctx context.Context, src Source, id string) sourceResult {
	var res sourceResult
	switch src {
	case SourcePTL, SourceCancer:
		store := r.ptl
		if src == SourceCancer {
			store = r.cancer
		}
		if store == nil {
			return res
		}
		e, err := store.GetByPatient(ctx, id)
		switch {
		case errors.Is(err, pathway.ErrNotFound):
		case err != nil:
			res.err = err
		default:
			res.entity, res.found = e, true
		}
	case SourceMDT:
		if r.mdt == nil {
			return res
		}
		res.discussions, res.err = r.mdt.DiscussionsFor(ctx, id)
		res.found = res.err == nil && len(res.discussions) > 0
	case SourceAppointments:
		if r.appts == nil {
			return res
		}
		res.appointments, res.err = r.appts.AppointmentsFor(ctx, id)
		res.found = res.err == nil && len(res.appointments) > 0
	}
	if res.err == nil && ctx.Err() != nil {
		res.err = fmt.Errorf("%s: %w", src, ctx.Err())
		res.found = false
	}
	return res
}

func (r *Resolver) merge(view *UnifiedPatientView, src Source, res sourceResult, now time.Time) {
	switch src {
	case SourcePTL, SourceCancer:
		e := res.entity
		a := pathway.Assess(e, now)
		pv := &PathwayView{Entity: e, Assessment: a, Score: pathway.Score(e, a)}
		if src == SourcePTL {
			view.PTL = pv
		} else {
			view.Cancer = pv
		}
		setName(view, e.DisplayName)
		for _, ev := range e.Events {
			view.Timeline = append(view.Timeline, TimelineEntry{
				Date: ev.Date, Source: src, Code: ev.Code, Description: ev.Description,
			})
		}
	case SourceMDT:
		view.Discussions = res.discussions
		for _, d := range res.discussions {
			setName(view, d.PatientName)
			desc := d.Specialty
			code := "mdt-discussion"
			if d.Decided && d.Outcome != nil {
				code = "mdt-outcome"
				desc = d.Specialty + ": " + *d.Outcome
			}
			view.Timeline = append(view.Timeline, TimelineEntry{
				Date: d.MeetingDate, Source: src, Code: code, Description: desc,
			})
		}
	case SourceAppointments:
		view.Appointments = res.appointments
		for _, a := range res.appointments {
			setName(view, a.PatientName)
			view.Timeline = append(view.Timeline, TimelineEntry{
				Date: a.Date, Source: src, Code: "appointment-" + a.Status, Description: a.Type,
			})
		}
	}
}

// setName keeps the first non-empty name; merge runs in priority order.
func setName(view *UnifiedPatientView, name string) {
	if view.DisplayName == "" && name != "" {
		view.DisplayName = name
	}
}

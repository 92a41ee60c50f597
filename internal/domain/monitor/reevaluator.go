package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/ptl/internal/domain/pathway"
	"github.com/ehr/ptl/internal/platform/notification"
)

// Reevaluator periodically re-classifies every active clock and raises an
// alert whenever an entity's tier changes.
type Reevaluator struct {
	stores   map[pathway.List]pathway.Store
	tiers    TierStore
	notifier notification.Notifier
	logger   zerolog.Logger
	now      func() time.Time

	Interval  time.Duration
	Workers   int
	Tolerance time.Duration

	// one tick at a time, whether from the loop or an explicit trigger
	tickMu sync.Mutex
}

func NewReevaluator(stores map[pathway.List]pathway.Store, tiers TierStore, notifier notification.Notifier, logger zerolog.Logger) *Reevaluator {
	return &Reevaluator{
		stores:    stores,
		tiers:     tiers,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		Interval:  time.Hour,
		Workers:   8,
		Tolerance: 24 * time.Hour,
	}
}

func (r *Reevaluator) WithClock(now func() time.Time) *Reevaluator {
	r.now = now
	return r
}

// TickResult summarizes one pass.
type TickResult struct {
	AsOf        time.Time `json:"as_of"`
	Evaluated   int64     `json:"evaluated"`
	Skipped     int64     `json:"skipped"`
	Transitions int64     `json:"transitions"`
	Alerts      int64     `json:"alerts"`
	Failures    int64     `json:"failures"`
	Cancelled   bool      `json:"cancelled"`
}

// Start ticks immediately and then every Interval until ctx is cancelled.
func (r *Reevaluator) Start(ctx context.Context) {
	r.runTick(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runTick(ctx)
		}
	}
}

func (r *Reevaluator) runTick(ctx context.Context) {
	res, err := r.Tick(ctx, r.now())
	ev := r.logger.Info()
	if err != nil {
		ev = r.logger.Warn().Err(err)
	}
	ev.Int64("evaluated", res.Evaluated).
		Int64("skipped", res.Skipped).
		Int64("alerts", res.Alerts).
		Int64("failures", res.Failures).
		Msg("re-evaluation tick complete")
}

// Tick re-classifies every monitored entity as of asOf. Cancellation is
// honoured between entities; an entity is either fully processed or left
// untouched. Running the same tick twice emits no duplicate alerts.
func (r *Reevaluator) Tick(ctx context.Context, asOf time.Time) (TickResult, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	res := TickResult{AsOf: asOf}
	var evaluated, skipped, transitions, alerts, failures atomic.Int64

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, list := range []pathway.List{pathway.ListPTL, pathway.ListCancer} {
		st := r.stores[list]
		if st == nil || ctx.Err() != nil {
			continue
		}
		// archived entries are listed so their tier state is cleared
		entities, err := st.List(ctx, true)
		if err != nil {
			_ = g.Wait()
			return res, err
		}
		for _, e := range entities {
			if ctx.Err() != nil {
				break
			}
			e := e
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				if !e.Monitored() {
					skipped.Add(1)
					r.forget(gctx, e)
					return nil
				}
				evaluated.Add(1)
				changed, alerted, err := r.evaluate(gctx, e, asOf)
				if err != nil {
					failures.Add(1)
					r.logger.Error().Err(err).Str("entity_id", e.ID.String()).Msg("re-evaluation failed")
				}
				if changed {
					transitions.Add(1)
				}
				if alerted {
					alerts.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	res.Evaluated = evaluated.Load()
	res.Skipped = skipped.Load()
	res.Transitions = transitions.Load()
	res.Alerts = alerts.Load()
	res.Failures = failures.Load()
	if err := ctx.Err(); err != nil {
		res.Cancelled = true
		return res, err
	}
	return res, nil
}

// evaluate classifies one entity and, on a tier change, notifies then
// commits. A transition whose alert cannot be queued is not committed, so the
// next tick sees it again.
func (r *Reevaluator) evaluate(ctx context.Context, e *pathway.TrackedEntity, asOf time.Time) (changed, alerted bool, err error) {
	if cerr := pathway.CheckClock(e, asOf, r.Tolerance); cerr != nil {
		r.logger.Warn().Err(cerr).Str("patient_id", e.PatientID).Msg("clock fallback applied")
	}
	a := pathway.Assess(e, asOf)

	old, err := r.tiers.Get(ctx, e.ID)
	if err != nil {
		return false, false, err
	}
	if old == a.Tier {
		return false, false, nil
	}

	commitCtx := ctx
	// first sighting of a healthy clock is not news
	if old != pathway.TierUnclassified || a.Tier != pathway.TierOnTrack {
		if err := ctx.Err(); err != nil {
			return false, false, err
		}
		ok := r.notifier.Notify(notification.Alert{
			EntityID:     e.ID,
			PatientID:    e.PatientID,
			List:         string(e.List),
			OldTier:      string(old),
			NewTier:      string(a.Tier),
			DaysToBreach: a.DaysToBreach,
			OccurredAt:   asOf,
		})
		if !ok {
			return false, false, nil
		}
		alerted = true
		// the alert is out; the tier must follow it even if the tick is cancelled
		commitCtx = context.WithoutCancel(ctx)
	}
	if err := r.tiers.Set(commitCtx, e.ID, a.Tier); err != nil {
		return false, alerted, err
	}
	return true, alerted, nil
}

// forget drops tier state for clocks that will never be re-evaluated.
func (r *Reevaluator) forget(ctx context.Context, e *pathway.TrackedEntity) {
	if !e.Archived && e.ClockStatus != pathway.ClockStopped {
		return
	}
	if err := r.tiers.Delete(ctx, e.ID); err != nil {
		r.logger.Warn().Err(err).Str("entity_id", e.ID.String()).Msg("failed to clear tier state")
	}
}

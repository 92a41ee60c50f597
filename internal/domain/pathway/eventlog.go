package pathway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AppendEvent adds rec to the entity's history and applies its clock
// semantics. Records already in the history are never touched; a terminal
// code stops the clock and later appends keep accruing history.
func AppendEvent(e *TrackedEntity, rec EventRecord) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	e.Events = append(e.Events, rec)
	e.LastUpdated = rec.Date

	switch {
	case IsTerminal(rec.Code):
		e.ClockStatus = ClockStopped
		if rec.Code == CodeArchived {
			e.Archived = true
		}
	case rec.Code == CodeClockPaused && e.ClockStatus == ClockActive:
		e.ClockStatus = ClockPaused
	case rec.Code == CodeClockResumed && e.ClockStatus == ClockPaused:
		e.ClockStatus = ClockActive
	}
}

const maxAppendAttempts = 3

// EventLog serializes writes per entity and retries optimistic-version
// conflicts against a freshly loaded copy. Different entities never contend.
type EventLog struct {
	logger zerolog.Logger
	locks  sync.Map // uuid.UUID -> *sync.Mutex
}

func NewEventLog(logger zerolog.Logger) *EventLog {
	return &EventLog{logger: logger}
}

func (l *EventLog) lockFor(id uuid.UUID) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append records rec on the entity identified by id.
func (l *EventLog) Append(ctx context.Context, store Store, id uuid.UUID, rec EventRecord) (*TrackedEntity, error) {
	return l.Update(ctx, store, id, func(e *TrackedEntity) error {
		AppendEvent(e, rec)
		return nil
	})
}

// ResetClock moves the clock start and re-activates the clock, leaving an
// audit record of the previous start date.
func (l *EventLog) ResetClock(ctx context.Context, store Store, id uuid.UUID, newStart time.Time, rec EventRecord) (*TrackedEntity, error) {
	return l.Update(ctx, store, id, func(e *TrackedEntity) error {
		r := rec
		if r.Description == "" {
			r.Description = "clock reset from " + e.ClockStartDate.Format("2006-01-02") + " to " + newStart.Format("2006-01-02")
		}
		r.Code = CodeClockReset
		AppendEvent(e, r)
		e.ClockStartDate = newStart
		e.ClockStatus = ClockActive
		return nil
	})
}

// Update loads the entity, applies mutate and saves it. mutate may run more
// than once if another writer wins the race, so it must be repeatable.
func (l *EventLog) Update(ctx context.Context, store Store, id uuid.UUID, mutate func(*TrackedEntity) error) (*TrackedEntity, error) {
	mu := l.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(e); err != nil {
			return nil, err
		}
		err = store.Save(ctx, e)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		l.logger.Warn().
			Str("entity_id", id.String()).
			Int("attempt", attempt).
			Msg("version conflict on append, retrying")
	}
	return nil, lastErr
}

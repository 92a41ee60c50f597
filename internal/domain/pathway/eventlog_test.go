package pathway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestAppendEvent_TerminalStopsClock(t *testing.T) {
	e := entityStarted(SixtyTwoDay, PriorityCancer62Day, 20)
	AppendEvent(e, EventRecord{Date: asOf, Code: CodeTreatmentStarted, Actor: "dr.a"})
	if e.ClockStatus != ClockStopped {
		t.Fatalf("status = %s, want stopped", e.ClockStatus)
	}
	if !e.LastUpdated.Equal(asOf) {
		t.Errorf("last updated = %s", e.LastUpdated)
	}

	// history keeps accruing after the stop
	AppendEvent(e, EventRecord{Date: asOf.Add(day), Code: "follow-up", Actor: "dr.a"})
	AppendEvent(e, EventRecord{Date: asOf.Add(2 * day), Code: CodeClockResumed, Actor: "dr.a"})
	if len(e.Events) != 3 {
		t.Errorf("events = %d, want 3", len(e.Events))
	}
	if e.ClockStatus != ClockStopped {
		t.Errorf("resume must not restart a stopped clock, got %s", e.ClockStatus)
	}
	for _, ev := range e.Events {
		if ev.ID == uuid.Nil {
			t.Error("expected event ids to be assigned")
		}
	}
}

func TestAppendEvent_PauseResume(t *testing.T) {
	e := entityStarted(Routine18Week, PriorityRoutine, 5)
	AppendEvent(e, EventRecord{Date: asOf, Code: CodeClockPaused})
	if e.ClockStatus != ClockPaused || e.Monitored() {
		t.Fatalf("expected paused and unmonitored, got %s", e.ClockStatus)
	}
	AppendEvent(e, EventRecord{Date: asOf, Code: CodeClockResumed})
	if e.ClockStatus != ClockActive || !e.Monitored() {
		t.Fatalf("expected active and monitored, got %s", e.ClockStatus)
	}
}

func TestAppendEvent_Archive(t *testing.T) {
	e := entityStarted(Routine18Week, PriorityRoutine, 5)
	AppendEvent(e, EventRecord{Date: asOf, Code: CodeArchived})
	if !e.Archived || e.ClockStatus != ClockStopped {
		t.Errorf("archived=%v status=%s", e.Archived, e.ClockStatus)
	}
}

func seeded(t *testing.T, st Store) *TrackedEntity {
	t.Helper()
	e := entityStarted(Routine18Week, PriorityRoutine, 10)
	AppendEvent(e, EventRecord{Date: e.ClockStartDate, Code: CodeInitialReferral, Actor: "seed"})
	if err := st.Create(context.Background(), e); err != nil {
		t.Fatalf("create: %v", err)
	}
	return e
}

// conflictingStore makes the first n saves lose to a concurrent writer.
type conflictingStore struct {
	*MemoryStore
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (s *conflictingStore) Save(ctx context.Context, e *TrackedEntity) error {
	s.mu.Lock()
	s.saves++
	lose := s.conflicts > 0
	if lose {
		s.conflicts--
	}
	s.mu.Unlock()
	if lose {
		return ErrVersionConflict
	}
	return s.MemoryStore.Save(ctx, e)
}

func TestEventLog_RetriesVersionConflict(t *testing.T) {
	st := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 2}
	e := seeded(t, st)
	log := NewEventLog(zerolog.Nop())

	got, err := log.Append(context.Background(), st, e.ID, EventRecord{Date: asOf, Code: "triaged", Actor: "dr.b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.saves != 3 {
		t.Errorf("saves = %d, want 3", st.saves)
	}
	if len(got.Events) != 2 || got.Version != 2 {
		t.Errorf("events=%d version=%d, want 2 and 2", len(got.Events), got.Version)
	}
}

func TestEventLog_GivesUpAfterRetries(t *testing.T) {
	st := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 10}
	e := seeded(t, st)
	log := NewEventLog(zerolog.Nop())

	_, err := log.Append(context.Background(), st, e.ID, EventRecord{Date: asOf, Code: "triaged"})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if st.saves != maxAppendAttempts {
		t.Errorf("saves = %d, want %d", st.saves, maxAppendAttempts)
	}
	stored, _ := st.GetByID(context.Background(), e.ID)
	if len(stored.Events) != 1 {
		t.Errorf("stored events = %d, want 1", len(stored.Events))
	}
}

func TestEventLog_ConcurrentAppendsAllLand(t *testing.T) {
	st := NewMemoryStore()
	e := seeded(t, st)
	log := NewEventLog(zerolog.Nop())

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := log.Append(context.Background(), st, e.ID, EventRecord{Date: asOf, Code: "note"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	stored, _ := st.GetByID(context.Background(), e.ID)
	if len(stored.Events) != n+1 {
		t.Errorf("events = %d, want %d", len(stored.Events), n+1)
	}
	if stored.Version != n+1 {
		t.Errorf("version = %d, want %d", stored.Version, n+1)
	}
}

func TestEventLog_ResetClock(t *testing.T) {
	st := NewMemoryStore()
	e := seeded(t, st)
	log := NewEventLog(zerolog.Nop())
	if _, err := log.Append(context.Background(), st, e.ID, EventRecord{Date: asOf, Code: CodeDischarged}); err != nil {
		t.Fatalf("append: %v", err)
	}

	newStart := asOf.Add(-2 * day)
	got, err := log.ResetClock(context.Background(), st, e.ID, newStart, EventRecord{Date: asOf, Actor: "dr.c"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !got.ClockStartDate.Equal(newStart) || got.ClockStatus != ClockActive {
		t.Errorf("start=%s status=%s", got.ClockStartDate, got.ClockStatus)
	}
	last := got.Events[len(got.Events)-1]
	if last.Code != CodeClockReset || last.Description == "" {
		t.Errorf("last event = %+v, want a described clock-reset", last)
	}
}

func TestMemoryStore_RejectsHistoryRewrite(t *testing.T) {
	st := NewMemoryStore()
	e := seeded(t, st)
	got, _ := st.GetByID(context.Background(), e.ID)
	got.Events[0].Description = "edited"
	if err := st.Save(context.Background(), got); !errors.Is(err, ErrHistoryRewritten) {
		t.Errorf("expected ErrHistoryRewritten, got %v", err)
	}
	got, _ = st.GetByID(context.Background(), e.ID)
	got.Events = nil
	if err := st.Save(context.Background(), got); !errors.Is(err, ErrHistoryRewritten) {
		t.Errorf("expected ErrHistoryRewritten on truncation, got %v", err)
	}
}

func TestMemoryStore_CreateRejectsDuplicateID(t *testing.T) {
	st := NewMemoryStore()
	e := seeded(t, st)

	dup := entityStarted(Routine18Week, PriorityRoutine, 3)
	dup.ID = e.ID
	if err := st.Create(context.Background(), dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	all, err := st.List(context.Background(), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("list has %d entries, want 1", len(all))
	}
	got, _ := st.GetByID(context.Background(), e.ID)
	if !got.ClockStartDate.Equal(e.ClockStartDate) {
		t.Error("duplicate create overwrote the stored entry")
	}
}

func TestMemoryStore_StaleVersion(t *testing.T) {
	st := NewMemoryStore()
	e := seeded(t, st)
	first, _ := st.GetByID(context.Background(), e.ID)
	second, _ := st.GetByID(context.Background(), e.ID)
	if err := st.Save(context.Background(), first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Save(context.Background(), second); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMemoryStore_GetByPatientPrefersLive(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	old := &TrackedEntity{PatientID: "123-456", Archived: true, DisplayName: "old"}
	live := &TrackedEntity{PatientID: "123 456", DisplayName: "live"}
	st.Create(ctx, old)
	st.Create(ctx, live)

	got, err := st.GetByPatient(ctx, "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DisplayName != "live" {
		t.Errorf("got %q, want live", got.DisplayName)
	}
	if _, err := st.GetByPatient(ctx, "--"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty id, got %v", err)
	}
	all, _ := st.List(ctx, true)
	liveOnly, _ := st.List(ctx, false)
	if len(all) != 2 || len(liveOnly) != 1 {
		t.Errorf("list all=%d live=%d", len(all), len(liveOnly))
	}
}

func TestMemoryStore_ExtensionsRoundTripIsolated(t *testing.T) {
	st := NewMemoryStore()
	e := entityStarted(Routine18Week, PriorityRoutine, 1)
	e.Extensions = map[string]json.RawMessage{"ward": json.RawMessage(`"7B"`)}
	if err := st.Create(context.Background(), e); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := st.GetByID(context.Background(), e.ID)
	if string(got.Extensions["ward"]) != `"7B"` {
		t.Errorf("extensions = %v", got.Extensions)
	}
	got.DisplayName = "mutated"
	got.Extensions["ward"] = json.RawMessage(`"9"`)

	again, _ := st.GetByID(context.Background(), e.ID)
	if again.DisplayName == "mutated" || string(again.Extensions["ward"]) != `"7B"` {
		t.Error("store handed out shared state")
	}
}

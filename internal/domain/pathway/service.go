package pathway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	stores    map[List]Store
	log       *EventLog
	logger    zerolog.Logger
	now       func() time.Time
	tolerance time.Duration
}

func NewService(ptl, cancer Store, logger zerolog.Logger) *Service {
	return &Service{
		stores:    map[List]Store{ListPTL: ptl, ListCancer: cancer},
		log:       NewEventLog(logger),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		tolerance: 24 * time.Hour,
	}
}

// WithClock replaces the time source. Tests pin it to a fixed instant.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithTolerance sets how far in the future a clock start may be before it is
// reported as invalid.
func (s *Service) WithTolerance(d time.Duration) *Service {
	s.tolerance = d
	return s
}

func (s *Service) Now() time.Time { return s.now() }

func (s *Service) Store(list List) (Store, error) {
	st, ok := s.stores[list]
	if !ok || st == nil {
		return nil, Invalidf("unknown pathway list: %s", list)
	}
	return st, nil
}

// Stores returns the configured stores in fixed PTL, Cancer order.
func (s *Service) Stores() []Store {
	return []Store{s.stores[ListPTL], s.stores[ListCancer]}
}

func defaultKind(list List) PathwayKind {
	if list == ListCancer {
		return SixtyTwoDay
	}
	return Routine18Week
}

// CreateEntry validates and records a new pathway entry. The creation event
// is always the first history record.
func (s *Service) CreateEntry(ctx context.Context, list List, e *TrackedEntity, actor string) error {
	st, err := s.Store(list)
	if err != nil {
		return err
	}
	if strings.TrimSpace(actor) == "" {
		return Invalidf("actor is required")
	}
	e.PatientID = NormalizeID(e.PatientID)
	if e.PatientID == "" {
		return Invalidf("patient_id must contain digits")
	}
	if e.PathwayKind == "" {
		e.PathwayKind = defaultKind(list)
	}
	if _, ok := TargetDays(e.PathwayKind); !ok {
		return Invalidf("invalid pathway_kind: %s", e.PathwayKind)
	}
	if e.Priority == "" {
		e.Priority = PriorityRoutine
	}
	if !validPriorities[e.Priority] {
		return Invalidf("invalid priority: %s", e.Priority)
	}
	now := s.now()
	if e.ClockStartDate.IsZero() {
		e.ClockStartDate = now
	}
	if e.ClockStartDate.After(now.Add(s.tolerance)) {
		return Invalidf("clock_start_date cannot be in the future")
	}

	e.List = list
	e.ClockStatus = ClockActive
	e.Archived = false
	e.Events = nil
	AppendEvent(e, EventRecord{
		Date:        e.ClockStartDate,
		Code:        CodeInitialReferral,
		Description: fmt.Sprintf("referral received (%s, %s)", e.PathwayKind, e.Priority),
		Actor:       actor,
	})
	if err := st.Create(ctx, e); err != nil {
		return fmt.Errorf("create pathway entry: %w", err)
	}
	return nil
}

// EntryView is an entity with its assessment as of the read.
type EntryView struct {
	Entity     *TrackedEntity   `json:"entity"`
	Assessment BreachAssessment `json:"assessment"`
	Score      float64          `json:"score"`
	AsOf       time.Time        `json:"as_of"`
}

func (s *Service) GetEntry(ctx context.Context, list List, id uuid.UUID) (*EntryView, error) {
	st, err := s.Store(list)
	if err != nil {
		return nil, err
	}
	e, err := st.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	s.warnClock(e, now)
	a := Assess(e, now)
	return &EntryView{Entity: e, Assessment: a, Score: Score(e, a), AsOf: now}, nil
}

// StatusUpdate is a new history record plus an optional status label change.
type StatusUpdate struct {
	Date        time.Time `json:"date"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	StatusLabel string    `json:"status_label"`
}

func (s *Service) AppendEvent(ctx context.Context, list List, id uuid.UUID, u StatusUpdate, actor string) (*TrackedEntity, error) {
	st, err := s.Store(list)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(actor) == "" {
		return nil, Invalidf("actor is required")
	}
	if strings.TrimSpace(u.Code) == "" {
		return nil, Invalidf("code is required")
	}
	if u.Code == CodeClockReset || u.Code == CodeInitialReferral {
		return nil, Invalidf("code %s cannot be appended directly", u.Code)
	}
	if u.Date.IsZero() {
		u.Date = s.now()
	}
	rec := EventRecord{Date: u.Date, Code: u.Code, Description: u.Description, Actor: actor}
	return s.log.Update(ctx, st, id, func(e *TrackedEntity) error {
		if u.StatusLabel != "" {
			e.CurrentStatusLabel = u.StatusLabel
		}
		AppendEvent(e, rec)
		return nil
	})
}

func (s *Service) ResetClock(ctx context.Context, list List, id uuid.UUID, newStart time.Time, reason, actor string) (*TrackedEntity, error) {
	st, err := s.Store(list)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(actor) == "" {
		return nil, Invalidf("actor is required")
	}
	now := s.now()
	if newStart.IsZero() {
		return nil, Invalidf("new clock_start_date is required")
	}
	if newStart.After(now.Add(s.tolerance)) {
		return nil, Invalidf("clock_start_date cannot be in the future")
	}
	return s.log.ResetClock(ctx, st, id, newStart, EventRecord{Date: now, Description: reason, Actor: actor})
}

// Archive logically deletes an entry; its history is kept and it remains
// resolvable.
func (s *Service) Archive(ctx context.Context, list List, id uuid.UUID, reason, actor string) (*TrackedEntity, error) {
	st, err := s.Store(list)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(actor) == "" {
		return nil, Invalidf("actor is required")
	}
	if reason == "" {
		reason = "removed from list"
	}
	return s.log.Append(ctx, st, id, EventRecord{Date: s.now(), Code: CodeArchived, Description: reason, Actor: actor})
}

// Worklist ranks the running clocks of a list. Paused and stopped clocks are
// not ranked; Summary counts them. An empty tier keeps all tiers.
func (s *Service) Worklist(ctx context.Context, list List, tier Tier) ([]WorklistItem, time.Time, error) {
	st, err := s.Store(list)
	if err != nil {
		return nil, time.Time{}, err
	}
	entities, err := st.List(ctx, false)
	if err != nil {
		return nil, time.Time{}, err
	}
	now := s.now()
	running := entities[:0]
	for _, e := range entities {
		if !e.Monitored() {
			continue
		}
		s.warnClock(e, now)
		running = append(running, e)
	}
	items := RankWorklist(running, now)
	if tier == "" {
		return items, now, nil
	}
	filtered := items[:0]
	for _, it := range items {
		if it.Assessment.Tier == tier {
			filtered = append(filtered, it)
		}
	}
	return filtered, now, nil
}

// Summary counts live entries by tier. Paused and stopped clocks are counted
// separately since their tier is not being tracked.
type Summary struct {
	List    List         `json:"list"`
	AsOf    time.Time    `json:"as_of"`
	Tiers   map[Tier]int `json:"tiers"`
	Paused  int          `json:"paused"`
	Stopped int          `json:"stopped"`
	Total   int          `json:"total"`
}

func (s *Service) Summary(ctx context.Context, list List) (*Summary, error) {
	st, err := s.Store(list)
	if err != nil {
		return nil, err
	}
	entities, err := st.List(ctx, false)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sum := &Summary{List: list, AsOf: now, Tiers: map[Tier]int{
		TierOnTrack: 0, TierAtRisk: 0, TierImminent: 0, TierBreached: 0,
	}}
	for _, e := range entities {
		sum.Total++
		switch e.ClockStatus {
		case ClockPaused:
			sum.Paused++
		case ClockStopped:
			sum.Stopped++
		default:
			sum.Tiers[Assess(e, now).Tier]++
		}
	}
	return sum, nil
}

func (s *Service) warnClock(e *TrackedEntity, now time.Time) {
	if err := CheckClock(e, now, s.tolerance); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", e.PatientID).Msg("clock fallback applied")
	}
}

package pathway

import (
	"sort"
	"time"
)

// Score ranks an entity for worklist ordering. Pure and deterministic; the
// result is always within [0, 100].
func Score(e *TrackedEntity, a BreachAssessment) float64 {
	s := 100.0 - float64(a.TierRank)*25
	switch e.Priority {
	case PriorityUrgent:
		s += 20
	case PriorityTwoWeekWait, PriorityCancer62Day:
		s += 30
	}
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// WorklistItem pairs an entity with its assessment and score.
type WorklistItem struct {
	Entity     *TrackedEntity   `json:"entity"`
	Assessment BreachAssessment `json:"assessment"`
	Score      float64          `json:"score"`
}

// RankWorklist assesses every entity as of asOf and returns them ordered by
// score descending, then days-to-breach ascending, then patient id.
func RankWorklist(entities []*TrackedEntity, asOf time.Time) []WorklistItem {
	items := make([]WorklistItem, 0, len(entities))
	for _, e := range entities {
		a := Assess(e, asOf)
		items = append(items, WorklistItem{Entity: e, Assessment: a, Score: Score(e, a)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return lessWorklist(items[i], items[j])
	})
	return items
}

func lessWorklist(a, b WorklistItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Assessment.DaysToBreach != b.Assessment.DaysToBreach {
		return a.Assessment.DaysToBreach < b.Assessment.DaysToBreach
	}
	return a.Entity.PatientID < b.Entity.PatientID
}

package pathway

import "time"

// Tier is a breach-risk classification.
type Tier string

const (
	TierUnclassified Tier = "unclassified"
	TierOnTrack      Tier = "on-track"
	TierAtRisk       Tier = "at-risk"
	TierImminent     Tier = "imminent"
	TierBreached     Tier = "breached"
)

// Rank orders tiers from least (0) to most (3) severe.
func (t Tier) Rank() int {
	switch t {
	case TierAtRisk:
		return 1
	case TierImminent:
		return 2
	case TierBreached:
		return 3
	default:
		return 0
	}
}

const (
	imminentWindow       = 3
	atRiskWindow         = 7
	atRiskWindowSixtyTwo = 14
)

// BreachAssessment is derived on demand and never persisted.
type BreachAssessment struct {
	DaysWaiting  int  `json:"days_waiting"`
	WeeksWaiting int  `json:"weeks_waiting"`
	TargetDays   int  `json:"target_days"`
	DaysToBreach int  `json:"days_to_breach"`
	Tier         Tier `json:"tier"`
	TierRank     int  `json:"tier_rank"`
}

// Classify maps elapsed days against a target onto a risk tier. Tiers are
// checked from most to least severe so a clock exactly at target is Breached.
func Classify(daysWaiting, target int, kind PathwayKind) BreachAssessment {
	if daysWaiting < 0 {
		daysWaiting = 0
	}
	toBreach := target - daysWaiting

	var tier Tier
	switch {
	case daysWaiting >= target:
		tier = TierBreached
	case toBreach <= imminentWindow:
		tier = TierImminent
	case toBreach <= atRiskWindowFor(kind):
		tier = TierAtRisk
	default:
		tier = TierOnTrack
	}

	return BreachAssessment{
		DaysWaiting:  daysWaiting,
		WeeksWaiting: daysWaiting / 7,
		TargetDays:   target,
		DaysToBreach: toBreach,
		Tier:         tier,
		TierRank:     tier.Rank(),
	}
}

func atRiskWindowFor(kind PathwayKind) int {
	if kind == SixtyTwoDay {
		return atRiskWindowSixtyTwo
	}
	return atRiskWindow
}

// Assess classifies an entity's clock as of the given time.
func Assess(e *TrackedEntity, asOf time.Time) BreachAssessment {
	target, _ := TargetDays(e.PathwayKind)
	return Classify(DaysWaiting(e, asOf), target, e.PathwayKind)
}

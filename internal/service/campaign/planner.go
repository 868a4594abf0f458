package campaign

import (
	"fmt"
	"math"

	"github.com/ignite/rankpush/internal/domain"
)

// PlannedDay is one generated day of a ramp plan before persistence.
type PlannedDay struct {
	Day      int
	Installs int
	Cost     float64
}

// BuildRampPlan converts campaign parameters into a day-indexed install
// curve. The strategy shapes a normalized day-weight vector which is
// scaled to totalInstalls; each day is floored and the rounding
// remainder lands on the final day so the plan sums exactly to the
// total. Cost per day is plannedInstalls × costPerInstall (0 when the
// cost is not yet known).
func BuildRampPlan(totalInstalls, durationDays int, strategy domain.CampaignStrategy, customWeights []float64, costPerInstall float64) ([]PlannedDay, error) {
	if durationDays <= 0 || totalInstalls <= 0 {
		return nil, fmt.Errorf("%w: installs=%d days=%d", ErrInvalidPlanParameters, totalInstalls, durationDays)
	}

	weights, err := weightsFor(strategy, durationDays, customWeights)
	if err != nil {
		return nil, err
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: weight vector sums to zero", ErrInvalidPlanParameters)
	}

	plan := make([]PlannedDay, durationDays)
	assigned := 0
	for i, w := range weights {
		installs := int(math.Floor(w / sum * float64(totalInstalls)))
		plan[i] = PlannedDay{Day: i + 1, Installs: installs}
		assigned += installs
	}
	// Remainder on the last day keeps the exact total.
	plan[durationDays-1].Installs += totalInstalls - assigned

	if costPerInstall > 0 {
		for i := range plan {
			plan[i].Cost = float64(plan[i].Installs) * costPerInstall
		}
	}
	return plan, nil
}

// weightsFor returns the raw (un-normalized) day-weight curve for a
// strategy. The exact shapes are tunable policy, not contract; what the
// engine guarantees is the normalize-scale-reconcile arithmetic around
// them.
func weightsFor(strategy domain.CampaignStrategy, days int, custom []float64) ([]float64, error) {
	switch strategy {
	case domain.StrategyConservative:
		// Flat: minimizes any single-day signal.
		w := make([]float64, days)
		for i := range w {
			w[i] = 1.0
		}
		return w, nil

	case domain.StrategyGradual:
		// Linear ramp from 20% of the plateau up to the plateau,
		// reached at the midpoint, flat afterwards.
		w := make([]float64, days)
		plateau := (days + 1) / 2
		if plateau < 1 {
			plateau = 1
		}
		for i := range w {
			day := i + 1
			if day >= plateau || plateau == 1 {
				w[i] = 1.0
				continue
			}
			w[i] = 0.2 + 0.8*float64(day-1)/float64(plateau-1)
		}
		return w, nil

	case domain.StrategyAggressive:
		// Front-loaded: full weight through the first third, linear
		// decay down to 30% by the final day.
		w := make([]float64, days)
		front := (days + 2) / 3
		if front < 1 {
			front = 1
		}
		for i := range w {
			day := i + 1
			if day <= front || days == front {
				w[i] = 1.0
				continue
			}
			w[i] = 1.0 - 0.7*float64(day-front)/float64(days-front)
		}
		return w, nil

	case domain.StrategyCustom:
		if len(custom) != days {
			return nil, fmt.Errorf("%w: custom weights length %d != duration %d",
				ErrInvalidPlanParameters, len(custom), days)
		}
		var sum float64
		for _, v := range custom {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: custom weight %v not normalizable", ErrInvalidPlanParameters, v)
			}
			sum += v
		}
		if sum <= 0 {
			return nil, fmt.Errorf("%w: custom weights sum to zero", ErrInvalidPlanParameters)
		}
		out := make([]float64, days)
		copy(out, custom)
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidPlanParameters, strategy)
	}
}

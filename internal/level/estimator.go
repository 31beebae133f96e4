package level

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"occupancy/internal/models"
	"occupancy/internal/storage"
)

// Estimator errors
var (
	ErrNoBreakpoints       = errors.New("at least one breakpoint is required")
	ErrUnorderedBreakpoint = errors.New("breakpoints must be strictly ascending")
)

// Estimator maps the summed device count of a snapshot onto an ordinal level.
// Breakpoint i is the exclusive upper bound of level i+1; sums at or above the
// last breakpoint map to the top level.
type Estimator struct {
	breakpoints []float64
}

// NewEstimator validates and copies breakpoints.
func NewEstimator(breakpoints []float64) (*Estimator, error) {
	if len(breakpoints) == 0 {
		return nil, ErrNoBreakpoints
	}
	for i, bp := range breakpoints {
		if math.IsNaN(bp) || math.IsInf(bp, 0) {
			return nil, fmt.Errorf("breakpoint %d: %v is not finite", i, bp)
		}
		if i > 0 && bp <= breakpoints[i-1] {
			return nil, fmt.Errorf("%w: %v after %v", ErrUnorderedBreakpoint, bp, breakpoints[i-1])
		}
	}
	return &Estimator{breakpoints: append([]float64(nil), breakpoints...)}, nil
}

// MaxLevel is the highest level the estimator can produce.
func (e *Estimator) MaxLevel() models.Level {
	return models.Level(len(e.breakpoints) + 1)
}

// Estimate returns the level for snap, or LevelUndefined when snap is empty.
func (e *Estimator) Estimate(snap storage.Snapshot) models.Level {
	if len(snap) == 0 {
		return models.LevelUndefined
	}
	return e.ForSum(Sum(snap))
}

// ForSum maps an aggregate device count to its level.
func (e *Estimator) ForSum(sum float64) models.Level {
	// number of breakpoints <= sum
	passed := sort.Search(len(e.breakpoints), func(i int) bool {
		return e.breakpoints[i] > sum
	})
	return models.Level(passed + 1)
}

// Sum adds device counts across the snapshot. Null, negative and non-finite
// readings count as zero.
func Sum(snap storage.Snapshot) float64 {
	var total float64
	for _, m := range snap {
		c := m.Count()
		if c > 0 && !math.IsInf(c, 0) {
			total += c
		}
	}
	return total
}

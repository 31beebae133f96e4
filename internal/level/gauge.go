package level

import (
	"occupancy/internal/models"
	"occupancy/internal/storage"
)

// SnapshotSource provides consistent copies of the latest measurements.
type SnapshotSource interface {
	Snapshot() storage.Snapshot
}

// Reading is a level computed together with the data it came from.
type Reading struct {
	Level   models.Level
	Sum     float64
	Sensors int
}

// Gauge computes the current level from a measurement source. Alert creation
// and the evaluator both read levels through a Gauge so they always agree.
type Gauge struct {
	source    SnapshotSource
	estimator *Estimator
}

// NewGauge binds an estimator to a snapshot source.
func NewGauge(source SnapshotSource, estimator *Estimator) *Gauge {
	return &Gauge{source: source, estimator: estimator}
}

// Current returns the level for the latest snapshot.
func (g *Gauge) Current() models.Level {
	return g.estimator.Estimate(g.source.Snapshot())
}

// Read returns the level along with the sum and sensor count it was derived from.
func (g *Gauge) Read() Reading {
	snap := g.source.Snapshot()
	return Reading{
		Level:   g.estimator.Estimate(snap),
		Sum:     Sum(snap),
		Sensors: len(snap),
	}
}

// Estimator exposes the underlying estimator.
func (g *Gauge) Estimator() *Estimator {
	return g.estimator
}

package level

import (
	"errors"
	"math"
	"testing"
	"time"

	"occupancy/internal/models"
	"occupancy/internal/storage"
)

func snapshotOf(counts ...*float64) storage.Snapshot {
	snap := make(storage.Snapshot, len(counts))
	for i, c := range counts {
		id := string(rune('a' + i))
		snap[id] = models.Measurement{SensorID: id, DeviceCount: c, ObservedAt: time.Now()}
	}
	return snap
}

func n(f float64) *float64 { return &f }

func TestEstimateBreakpoints(t *testing.T) {
	est, err := NewEstimator([]float64{21, 41, 61, 81})
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	tests := []struct {
		sum  float64
		want models.Level
	}{
		{0, 1},
		{20, 1},
		{20.9, 1},
		{21, 2},
		{40, 2},
		{41, 3},
		{60, 3},
		{61, 4},
		{80, 4},
		{81, 5},
		{1000, 5},
	}

	for _, tt := range tests {
		if got := est.Estimate(snapshotOf(n(tt.sum))); got != tt.want {
			t.Errorf("sum=%v: level %v, want %v", tt.sum, got, tt.want)
		}
	}
}

func TestEstimateEmptyIsUndefined(t *testing.T) {
	est, _ := NewEstimator([]float64{21, 41, 61, 81})
	if got := est.Estimate(storage.Snapshot{}); got.Defined() {
		t.Errorf("empty snapshot gave %v, want undefined", got)
	}
	if got := est.Estimate(nil); got.Defined() {
		t.Errorf("nil snapshot gave %v, want undefined", got)
	}
}

func TestEstimateTreatsBadReadingsAsZero(t *testing.T) {
	est, _ := NewEstimator([]float64{21, 41, 61, 81})

	// sensors present but reporting nothing is a valid level-1 reading
	if got := est.Estimate(snapshotOf(nil, nil)); got != 1 {
		t.Errorf("null readings: level %v, want 1", got)
	}
	if got := est.Estimate(snapshotOf(n(30), nil, n(-50), n(math.Inf(1)))); got != 2 {
		t.Errorf("mixed readings: level %v, want 2", got)
	}
	if got := Sum(snapshotOf(n(10.5), n(10.5))); got != 21 {
		t.Errorf("Sum = %v, want 21", got)
	}
}

func TestEstimateMonotonic(t *testing.T) {
	est, _ := NewEstimator([]float64{21, 41, 61, 81})
	prev := models.Level(0)
	for sum := 0.0; sum <= 120; sum += 0.5 {
		got := est.ForSum(sum)
		if got < prev {
			t.Fatalf("level decreased from %v to %v at sum %v", prev, got, sum)
		}
		prev = got
	}
	if prev != est.MaxLevel() {
		t.Errorf("top level = %v, want %v", prev, est.MaxLevel())
	}
}

func TestEstimateDeterministic(t *testing.T) {
	est, _ := NewEstimator([]float64{21, 41, 61, 81})
	snap := snapshotOf(n(12), n(19), n(33))
	first := est.Estimate(snap)
	for i := 0; i < 100; i++ {
		if got := est.Estimate(snap); got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestNewEstimatorRejects(t *testing.T) {
	if _, err := NewEstimator(nil); !errors.Is(err, ErrNoBreakpoints) {
		t.Errorf("nil breakpoints: %v", err)
	}
	if _, err := NewEstimator([]float64{21, 21}); !errors.Is(err, ErrUnorderedBreakpoint) {
		t.Errorf("duplicate breakpoints: %v", err)
	}
	if _, err := NewEstimator([]float64{41, 21}); !errors.Is(err, ErrUnorderedBreakpoint) {
		t.Errorf("descending breakpoints: %v", err)
	}
	if _, err := NewEstimator([]float64{math.NaN()}); err == nil {
		t.Error("NaN breakpoint accepted")
	}
}

func TestNewEstimatorCopiesBreakpoints(t *testing.T) {
	bps := []float64{21, 41}
	est, _ := NewEstimator(bps)
	bps[0] = 1000
	if got := est.ForSum(30); got != 2 {
		t.Errorf("estimator shares caller slice: level %v", got)
	}
}

func TestGaugeReadsThroughSource(t *testing.T) {
	store := storage.NewMeasurementStore()
	est, _ := NewEstimator([]float64{21, 41, 61, 81})
	g := NewGauge(store, est)

	if g.Current().Defined() {
		t.Fatal("empty store should be undefined")
	}

	store.Record("a", n(30), time.Now())
	store.Record("b", n(35), time.Now())

	r := g.Read()
	if r.Level != 4 || r.Sum != 65 || r.Sensors != 2 {
		t.Errorf("Read() = %+v", r)
	}
	if g.Current() != r.Level {
		t.Errorf("Current() disagrees with Read()")
	}
}

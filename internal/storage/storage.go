package storage

import (
	"sort"
	"sync"
	"time"

	"occupancy/internal/metrics"
	"occupancy/internal/models"
)

// Snapshot is a point-in-time copy of the latest measurement per sensor.
// It shares no memory with the store.
type Snapshot map[string]models.Measurement

// SensorIDs returns the snapshot's sensor ids in sorted order.
func (s Snapshot) SensorIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MeasurementStore keeps the most recent reading of every sensor.
// It is safe for concurrent use.
type MeasurementStore struct {
	mu     sync.RWMutex
	latest map[string]models.Measurement
}

// NewMeasurementStore creates an empty store
func NewMeasurementStore() *MeasurementStore {
	return &MeasurementStore{
		latest: make(map[string]models.Measurement),
	}
}

// Record replaces any previous reading for sensorID. A nil count is stored as
// an absent reading.
func (s *MeasurementStore) Record(sensorID string, count *float64, at time.Time) models.Measurement {
	m := models.Measurement{
		SensorID:    sensorID,
		DeviceCount: copyCount(count),
		ObservedAt:  at,
	}

	s.mu.Lock()
	s.latest[sensorID] = m
	n := len(s.latest)
	s.mu.Unlock()

	metrics.SensorsTracked.Set(float64(n))
	return m
}

// Snapshot returns a copy of all current entries.
func (s *MeasurementStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.latest))
	for id, m := range s.latest {
		m.DeviceCount = copyCount(m.DeviceCount)
		out[id] = m
	}
	return out
}

// Len returns the number of distinct sensors seen.
func (s *MeasurementStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}

func copyCount(count *float64) *float64 {
	if count == nil {
		return nil
	}
	c := *count
	return &c
}

package alerts

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"occupancy/internal/logger"
	"occupancy/internal/metrics"
	"occupancy/internal/models"
)

// Registry errors
var (
	ErrNotFound          = errors.New("alert not found")
	ErrNotActive         = errors.New("alert is no longer active")
	ErrInvalidTransition = errors.New("alerts can only move to fired or expired")
)

// LevelSource reports the current occupancy level.
type LevelSource interface {
	Current() models.Level
}

// Transition moves an active alert into a terminal state.
type Transition struct {
	ID int64
	To models.Status
	At time.Time

	// NotifyErr records a failed delivery attempt on a fired alert
	NotifyErr error
}

// Config holds registry configuration
type Config struct {
	Levels LevelSource

	// Unit is the length of one duration step (one hour by default)
	Unit     time.Duration
	MinUnits int
	MaxUnits int

	// ArchiveLimit caps how many terminal alerts are kept for reporting
	ArchiveLimit int

	Now func() time.Time
}

// Registry owns every alert and its lifecycle state. It is safe for concurrent use.
type Registry struct {
	levels       LevelSource
	unit         time.Duration
	minUnits     int
	maxUnits     int
	archiveLimit int
	now          func() time.Time

	mu       sync.RWMutex
	nextID   int64
	alerts   map[int64]*models.Alert
	order    []int64 // creation order
	archived []int64 // terminal alerts, oldest first
	active   int
}

// NewRegistry creates a registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Unit <= 0 {
		cfg.Unit = time.Hour
	}
	if cfg.MinUnits <= 0 {
		cfg.MinUnits = 1
	}
	if cfg.MaxUnits < cfg.MinUnits {
		cfg.MaxUnits = 8
	}
	if cfg.ArchiveLimit <= 0 {
		cfg.ArchiveLimit = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Registry{
		levels:       cfg.Levels,
		unit:         cfg.Unit,
		minUnits:     cfg.MinUnits,
		maxUnits:     cfg.MaxUnits,
		archiveLimit: cfg.ArchiveLimit,
		now:          cfg.Now,
		alerts:       make(map[int64]*models.Alert),
	}
}

// Create validates the request and registers a new active alert. Rejected
// requests leave the registry untouched and do not consume an id.
func (r *Registry) Create(email string, units int) (models.Alert, error) {
	email = models.NormalizeEmail(email)
	if err := models.ValidateEmail(email); err != nil {
		return models.Alert{}, err
	}
	if units < r.minUnits || units > r.maxUnits {
		return models.Alert{}, &models.ValidationError{
			Reason:  models.ReasonDurationOutOfRange,
			Message: fmt.Sprintf("duration must be between %d and %d", r.minUnits, r.maxUnits),
		}
	}

	baseline := models.LevelUndefined
	if r.levels != nil {
		baseline = r.levels.Current()
	}
	duration := time.Duration(units) * r.unit

	r.mu.Lock()
	r.nextID++
	now := r.now()
	alert := &models.Alert{
		ID:            r.nextID,
		Email:         email,
		DurationUnits: units,
		Duration:      duration,
		CreatedAt:     now,
		ExpiresAt:     now.Add(duration),
		Status:        models.StatusActive,
		StartingLevel: baseline,
	}
	r.alerts[alert.ID] = alert
	r.order = append(r.order, alert.ID)
	r.active++
	active := r.active
	out := *alert
	r.mu.Unlock()

	metrics.AlertsCreated.Inc()
	metrics.ActiveAlerts.Set(float64(active))

	log := logger.WithAlert("registry", out.ID)
	log.Info().
		Int("duration_units", units).
		Time("expires_at", out.ExpiresAt).
		Stringer("starting_level", out.StartingLevel).
		Msg("alert created")

	return out, nil
}

// Get returns a copy of the alert with the given id.
func (r *Registry) Get(id int64) (models.Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return models.Alert{}, false
	}
	return *a, true
}

// ListActive returns copies of all active alerts in creation order.
func (r *Registry) ListActive() []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, 0, r.active)
	for _, id := range r.order {
		if a := r.alerts[id]; a.Status == models.StatusActive {
			out = append(out, *a)
		}
	}
	return out
}

// ListAll returns copies of every retained alert in creation order.
func (r *Registry) ListAll() []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.alerts[id])
	}
	return out
}

// CaptureBaseline sets the starting level of an active alert that has none.
// An existing baseline is never overwritten; the stored alert is returned
// either way.
func (r *Registry) CaptureBaseline(id int64, lvl models.Level) (models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return models.Alert{}, ErrNotFound
	}
	if a.Status != models.StatusActive {
		return *a, ErrNotActive
	}
	if !a.StartingLevel.Defined() && lvl.Defined() {
		a.StartingLevel = lvl
	}
	return *a, nil
}

// Apply performs a terminal transition. Each alert transitions at most once.
func (r *Registry) Apply(t Transition) (models.Alert, error) {
	if t.To != models.StatusFired && t.To != models.StatusExpired {
		return models.Alert{}, fmt.Errorf("%w: %q", ErrInvalidTransition, t.To)
	}

	r.mu.Lock()
	a, ok := r.alerts[t.ID]
	if !ok {
		r.mu.Unlock()
		return models.Alert{}, ErrNotFound
	}
	if a.Status != models.StatusActive {
		out := *a
		r.mu.Unlock()
		return out, ErrNotActive
	}

	at := t.At
	a.Status = t.To
	switch t.To {
	case models.StatusFired:
		a.FiredAt = &at
		if t.NotifyErr != nil {
			a.NotifyError = t.NotifyErr.Error()
		}
	case models.StatusExpired:
		a.ExpiredAt = &at
	}
	r.active--
	r.archived = append(r.archived, a.ID)
	r.pruneLocked()

	out := *a
	active := r.active
	r.mu.Unlock()

	metrics.AlertTransitions.WithLabelValues(string(t.To)).Inc()
	metrics.ActiveAlerts.Set(float64(active))
	return out, nil
}

// pruneLocked drops the oldest terminal alerts beyond the archive limit.
func (r *Registry) pruneLocked() {
	excess := len(r.archived) - r.archiveLimit
	if excess <= 0 {
		return
	}

	drop := make(map[int64]struct{}, excess)
	for _, id := range r.archived[:excess] {
		drop[id] = struct{}{}
		delete(r.alerts, id)
	}
	r.archived = append([]int64(nil), r.archived[excess:]...)

	kept := r.order[:0]
	for _, id := range r.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

// Stats returns registry statistics
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Active:   r.active,
		Retained: len(r.order),
		LastID:   r.nextID,
	}
}

// Stats holds registry counters
type Stats struct {
	Active   int   `json:"active"`
	Retained int   `json:"retained"`
	LastID   int64 `json:"last_id"`
}

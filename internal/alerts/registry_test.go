package alerts

import (
	"errors"
	"sync"
	"testing"
	"time"

	"occupancy/internal/models"
)

type fixedLevel struct {
	mu  sync.Mutex
	lvl models.Level
}

func (f *fixedLevel) Current() models.Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lvl
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func newTestRegistry(lvl models.Level) (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	r := NewRegistry(Config{
		Levels:   &fixedLevel{lvl: lvl},
		Unit:     time.Hour,
		MinUnits: 1,
		MaxUnits: 8,
		Now:      clock.Now,
	})
	return r, clock
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		units  int
		reason models.Reason
	}{
		{"missing email", "", 3, models.ReasonEmailRequired},
		{"bad email", "bad", 3, models.ReasonInvalidEmail},
		{"too long", "a@b.co", 9, models.ReasonDurationOutOfRange},
		{"zero", "a@b.co", 0, models.ReasonDurationOutOfRange},
		{"negative", "a@b.co", -1, models.ReasonDurationOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(3)
			_, err := r.Create(tt.email, tt.units)
			reason, ok := models.ReasonOf(err)
			if !ok || reason != tt.reason {
				t.Fatalf("Create(%q, %d) error = %v, want reason %s", tt.email, tt.units, err, tt.reason)
			}
			if len(r.ListAll()) != 0 {
				t.Errorf("rejected create mutated the registry")
			}
		})
	}
}

func TestCreateBoundsInclusive(t *testing.T) {
	r, _ := newTestRegistry(3)
	for _, units := range []int{1, 8} {
		if _, err := r.Create("a@b.co", units); err != nil {
			t.Errorf("Create with %d units: %v", units, err)
		}
	}
}

func TestCreateSuccess(t *testing.T) {
	r, clock := newTestRegistry(4)

	a, err := r.Create("a@b.co", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID != 1 {
		t.Errorf("ID = %d, want 1", a.ID)
	}
	if !a.CreatedAt.Equal(clock.Now()) {
		t.Errorf("CreatedAt = %v", a.CreatedAt)
	}
	if !a.ExpiresAt.Equal(a.CreatedAt.Add(3 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want created_at + 3h", a.ExpiresAt)
	}
	if a.Status != models.StatusActive {
		t.Errorf("Status = %s", a.Status)
	}
	if a.StartingLevel != 4 {
		t.Errorf("StartingLevel = %v, want 4", a.StartingLevel)
	}
	if a.FiredAt != nil {
		t.Errorf("FiredAt should be nil")
	}
	if a.DurationUnits != 3 || a.Duration != 3*time.Hour {
		t.Errorf("duration = %d / %v", a.DurationUnits, a.Duration)
	}
}

func TestCreateWithoutMeasurementsLeavesBaselineUndefined(t *testing.T) {
	r, _ := newTestRegistry(models.LevelUndefined)
	a, err := r.Create("a@b.co", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.StartingLevel.Defined() {
		t.Errorf("StartingLevel = %v, want undefined", a.StartingLevel)
	}
}

func TestIDsSkipRejectedRequests(t *testing.T) {
	r, _ := newTestRegistry(2)

	first, _ := r.Create("a@b.co", 1)
	if _, err := r.Create("bad", 1); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := r.Create("a@b.co", 99); err == nil {
		t.Fatal("expected validation error")
	}
	second, _ := r.Create("c@d.org", 2)

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}
}

func TestConcurrentCreateAssignsUniqueIncreasingIDs(t *testing.T) {
	r, _ := newTestRegistry(2)
	const n = 200

	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := r.Create("a@b.co", 1)
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids <- a.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d ids, want %d", len(seen), n)
	}

	all := r.ListAll()
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Fatalf("ids not increasing in creation order: %d then %d", all[i-1].ID, all[i].ID)
		}
	}
}

func TestApplyTransitions(t *testing.T) {
	r, clock := newTestRegistry(4)
	a, _ := r.Create("a@b.co", 2)
	b, _ := r.Create("c@d.org", 2)

	at := clock.Now().Add(time.Minute)
	fired, err := r.Apply(Transition{ID: a.ID, To: models.StatusFired, At: at, NotifyErr: errors.New("smtp down")})
	if err != nil {
		t.Fatalf("Apply fired: %v", err)
	}
	if fired.Status != models.StatusFired || fired.FiredAt == nil || !fired.FiredAt.Equal(at) {
		t.Errorf("fired alert = %+v", fired)
	}
	if fired.NotifyError != "smtp down" {
		t.Errorf("NotifyError = %q", fired.NotifyError)
	}

	expired, err := r.Apply(Transition{ID: b.ID, To: models.StatusExpired, At: at})
	if err != nil {
		t.Fatalf("Apply expired: %v", err)
	}
	if expired.Status != models.StatusExpired || expired.ExpiredAt == nil || expired.FiredAt != nil {
		t.Errorf("expired alert = %+v", expired)
	}

	if active := r.ListActive(); len(active) != 0 {
		t.Errorf("terminal alerts still listed as active: %+v", active)
	}
	if all := r.ListAll(); len(all) != 2 {
		t.Errorf("ListAll() = %d alerts, want 2", len(all))
	}
}

func TestApplyAtMostOnce(t *testing.T) {
	r, clock := newTestRegistry(4)
	a, _ := r.Create("a@b.co", 2)

	if _, err := r.Apply(Transition{ID: a.ID, To: models.StatusFired, At: clock.Now()}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	got, err := r.Apply(Transition{ID: a.ID, To: models.StatusExpired, At: clock.Now()})
	if !errors.Is(err, ErrNotActive) {
		t.Fatalf("second Apply error = %v, want ErrNotActive", err)
	}
	if got.Status != models.StatusFired || got.ExpiredAt != nil {
		t.Errorf("terminal state changed: %+v", got)
	}
}

func TestApplyRejects(t *testing.T) {
	r, clock := newTestRegistry(4)
	a, _ := r.Create("a@b.co", 2)

	if _, err := r.Apply(Transition{ID: 99, To: models.StatusFired, At: clock.Now()}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
	if _, err := r.Apply(Transition{ID: a.ID, To: models.StatusActive, At: clock.Now()}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("to active: %v", err)
	}
	if got, _ := r.Get(a.ID); got.Status != models.StatusActive {
		t.Errorf("rejected transition changed status to %s", got.Status)
	}
}

func TestCaptureBaselineIsWriteOnce(t *testing.T) {
	levels := &fixedLevel{}
	r := NewRegistry(Config{Levels: levels})
	a, _ := r.Create("a@b.co", 1)

	got, err := r.CaptureBaseline(a.ID, 3)
	if err != nil || got.StartingLevel != 3 {
		t.Fatalf("first capture = %v, %v", got.StartingLevel, err)
	}
	got, err = r.CaptureBaseline(a.ID, 5)
	if err != nil || got.StartingLevel != 3 {
		t.Errorf("baseline overwritten: %v, %v", got.StartingLevel, err)
	}
	got, _ = r.CaptureBaseline(a.ID, models.LevelUndefined)
	if got.StartingLevel != 3 {
		t.Errorf("baseline cleared: %v", got.StartingLevel)
	}
}

func TestCaptureBaselineRejectsTerminal(t *testing.T) {
	r := NewRegistry(Config{Levels: &fixedLevel{}})
	a, _ := r.Create("a@b.co", 1)
	r.Apply(Transition{ID: a.ID, To: models.StatusExpired, At: time.Now()})

	if _, err := r.CaptureBaseline(a.ID, 2); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
	if _, err := r.CaptureBaseline(42, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveLimitDropsOldestTerminal(t *testing.T) {
	r := NewRegistry(Config{Levels: &fixedLevel{lvl: 2}, ArchiveLimit: 2})

	var ids []int64
	for i := 0; i < 4; i++ {
		a, _ := r.Create("a@b.co", 1)
		ids = append(ids, a.ID)
	}
	keep, _ := r.Create("keep@b.co", 1)

	for _, id := range ids {
		if _, err := r.Apply(Transition{ID: id, To: models.StatusExpired, At: time.Now()}); err != nil {
			t.Fatalf("Apply %d: %v", id, err)
		}
	}

	all := r.ListAll()
	if len(all) != 3 {
		t.Fatalf("retained %d alerts, want 3: %+v", len(all), all)
	}
	if all[0].ID != ids[2] || all[1].ID != ids[3] || all[2].ID != keep.ID {
		t.Errorf("unexpected retained ids: %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}
	if _, ok := r.Get(ids[0]); ok {
		t.Errorf("oldest terminal alert should be dropped")
	}

	st := r.Stats()
	if st.Active != 1 || st.Retained != 3 || st.LastID != keep.ID {
		t.Errorf("Stats() = %+v", st)
	}

	// ids keep increasing after pruning
	next, _ := r.Create("a@b.co", 1)
	if next.ID != keep.ID+1 {
		t.Errorf("next id = %d, want %d", next.ID, keep.ID+1)
	}
}

func TestListReturnsCopies(t *testing.T) {
	r, _ := newTestRegistry(3)
	a, _ := r.Create("a@b.co", 1)

	list := r.ListActive()
	list[0].Status = models.StatusFired
	list[0].StartingLevel = 1

	got, _ := r.Get(a.ID)
	if got.Status != models.StatusActive || got.StartingLevel != 3 {
		t.Errorf("registry state leaked through ListActive: %+v", got)
	}
}

func TestCreateNormalizesEmail(t *testing.T) {
	r, _ := newTestRegistry(3)
	a, err := r.Create("  Jane@Example.COM ", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Email != "Jane@example.com" {
		t.Errorf("Email = %q", a.Email)
	}
}

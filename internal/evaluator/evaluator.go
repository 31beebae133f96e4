package evaluator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"occupancy/internal/alerts"
	"occupancy/internal/events"
	"occupancy/internal/logger"
	"occupancy/internal/metrics"
	"occupancy/internal/models"
	"occupancy/internal/notify"
)

// AlertStore is the part of the alert registry the evaluator mutates.
type AlertStore interface {
	ListActive() []models.Alert
	CaptureBaseline(id int64, lvl models.Level) (models.Alert, error)
	Apply(t alerts.Transition) (models.Alert, error)
}

// Config holds evaluator configuration
type Config struct {
	Alerts   AlertStore
	Levels   alerts.LevelSource
	Notifier notify.Notifier
	Sink     events.Sink

	Interval      time.Duration
	NotifyTimeout time.Duration

	Now func() time.Time
}

// Report summarises one evaluation cycle.
type Report struct {
	Level          models.Level
	Skipped        bool
	Evaluated      int
	Baselined      int
	Fired          int
	Expired        int
	NotifyFailures int
	Duration       time.Duration
}

// Evaluator periodically compares every active alert against the current
// occupancy level and moves it to fired or expired.
type Evaluator struct {
	alerts        AlertStore
	levels        alerts.LevelSource
	notifier      notify.Notifier
	sink          events.Sink
	interval      time.Duration
	notifyTimeout time.Duration
	now           func() time.Time

	// cycleMu serialises cycles; lastLevel is only touched while holding it
	cycleMu   sync.Mutex
	lastLevel models.Level
}

// New creates an evaluator
func New(cfg Config) (*Evaluator, error) {
	if cfg.Alerts == nil {
		return nil, errors.New("evaluator: alert store is required")
	}
	if cfg.Levels == nil {
		return nil, errors.New("evaluator: level source is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Sink == nil {
		cfg.Sink = events.Nop{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Evaluator{
		alerts:        cfg.Alerts,
		levels:        cfg.Levels,
		notifier:      cfg.Notifier,
		sink:          cfg.Sink,
		interval:      cfg.Interval,
		notifyTimeout: cfg.NotifyTimeout,
		now:           cfg.Now,
	}, nil
}

// Run evaluates alerts every interval until ctx is cancelled. A failing or
// panicking cycle is logged and the loop carries on with the next tick.
func (e *Evaluator) Run(ctx context.Context) {
	log := logger.WithComponent("evaluator")
	log.Info().
		Dur("interval", e.interval).
		Dur("notify_timeout", e.notifyTimeout).
		Msg("evaluator started")
	defer log.Info().Msg("evaluator stopped")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safeCycle(ctx)
		}
	}
}

// safeCycle runs one cycle behind a panic boundary.
func (e *Evaluator) safeCycle(ctx context.Context) {
	log := logger.WithComponent("evaluator")

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("evaluation cycle panic recovered")
			metrics.PanicsRecovered.WithLabelValues("evaluator").Inc()
			metrics.EvaluatorCycles.WithLabelValues("failed").Inc()
		}
	}()

	rep, err := e.Cycle(ctx)
	if err != nil {
		log.Error().Err(err).Msg("evaluation cycle failed")
		return
	}
	if rep.Skipped {
		log.Debug().Msg("no measurements yet, cycle skipped")
		return
	}
	log.Debug().
		Stringer("level", rep.Level).
		Int("evaluated", rep.Evaluated).
		Int("baselined", rep.Baselined).
		Int("fired", rep.Fired).
		Int("expired", rep.Expired).
		Int("notify_failures", rep.NotifyFailures).
		Dur("duration", rep.Duration).
		Msg("evaluation cycle completed")
}

// Cycle performs a single evaluation pass. Alerts registered while the pass
// is running are left for the next cycle.
func (e *Evaluator) Cycle(ctx context.Context) (Report, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()
	var rep Report
	defer func() {
		rep.Duration = time.Since(start)
		metrics.EvaluatorCycleDuration.Observe(rep.Duration.Seconds())
	}()

	// The active set is fixed before the level is read so an alert created
	// during the pass waits for the next cycle.
	active := e.alerts.ListActive()
	current := e.levels.Current()
	now := e.now()
	rep.Level = current
	e.observeLevel(current, now)

	if !current.Defined() {
		rep.Skipped = true
		metrics.EvaluatorCycles.WithLabelValues("skipped").Inc()
		return rep, nil
	}

	var errs []error
	for _, a := range active {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep.Evaluated++
		if err := e.evaluate(ctx, a, current, now, &rep); err != nil {
			errs = append(errs, fmt.Errorf("alert %d: %w", a.ID, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		metrics.EvaluatorCycles.WithLabelValues("failed").Inc()
		return rep, err
	}
	metrics.EvaluatorCycles.WithLabelValues("evaluated").Inc()
	return rep, nil
}

func (e *Evaluator) evaluate(ctx context.Context, a models.Alert, current models.Level, now time.Time, rep *Report) error {
	if a.Expired(now) {
		expired, err := e.alerts.Apply(alerts.Transition{ID: a.ID, To: models.StatusExpired, At: now})
		if err != nil {
			return err
		}
		rep.Expired++
		log := logger.WithAlert("evaluator", a.ID)
		log.Info().
			Time("expires_at", a.ExpiresAt).
			Msg("alert expired without a level drop")
		e.sink.Emit(models.NewAlertEvent(models.EventAlertExpired, expired, current, now))
		return nil
	}

	if !a.StartingLevel.Defined() {
		captured, err := e.alerts.CaptureBaseline(a.ID, current)
		if err != nil {
			return err
		}
		rep.Baselined++
		a = captured
		log := logger.WithAlert("evaluator", a.ID)
		log.Info().
			Stringer("starting_level", a.StartingLevel).
			Msg("baseline captured")
		e.sink.Emit(models.NewAlertEvent(models.EventAlertBaseline, a, current, now))
	}

	if !a.Dropped(current) {
		return nil
	}

	notifyErr := e.deliver(ctx, a, current)
	fired, err := e.alerts.Apply(alerts.Transition{
		ID:        a.ID,
		To:        models.StatusFired,
		At:        now,
		NotifyErr: notifyErr,
	})
	if err != nil {
		return err
	}
	rep.Fired++
	if notifyErr != nil {
		rep.NotifyFailures++
	}
	e.sink.Emit(models.NewAlertEvent(models.EventAlertFired, fired, current, now))
	return nil
}

// deliver sends the notification for a fired alert. It never waits longer
// than the notify timeout, even if the notifier ignores its context.
func (e *Evaluator) deliver(ctx context.Context, a models.Alert, current models.Level) error {
	log := logger.WithAlert("evaluator", a.ID)
	subject, body := notify.Compose(a, current)

	nctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.PanicsRecovered.WithLabelValues("notifier").Inc()
				done <- fmt.Errorf("notifier panic: %v", r)
			}
		}()
		done <- e.notifier.Send(nctx, a.Email, subject, body)
	}()

	var err error
	select {
	case err = <-done:
	case <-nctx.Done():
		err = fmt.Errorf("notify: %w", nctx.Err())
	}
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error().
			Err(err).
			Stringer("starting_level", a.StartingLevel).
			Stringer("current_level", current).
			Msg("notification failed, alert marked fired")
		return err
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	log.Info().
		Stringer("starting_level", a.StartingLevel).
		Stringer("current_level", current).
		Msg("notification sent")
	return nil
}

// observeLevel publishes the level gauge and a level.changed event on change.
func (e *Evaluator) observeLevel(current models.Level, now time.Time) {
	metrics.CurrentLevel.Set(float64(current))
	if current == e.lastLevel {
		return
	}
	log := logger.WithComponent("evaluator")
	log.Info().
		Stringer("from", e.lastLevel).
		Stringer("to", current).
		Msg("occupancy level changed")
	e.lastLevel = current
	e.sink.Emit(models.Event{Type: models.EventLevelChanged, Level: current, At: now})
}

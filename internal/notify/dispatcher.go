package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "tkbcal/internal/log"
	"tkbcal/internal/timetable"
)

// DefaultSpec checks for due reminders every minute.
const DefaultSpec = "* * * * *"

// ScheduleSource yields the current schedule. *timetable.Service
// satisfies it.
type ScheduleSource interface {
	Current(ctx context.Context) (timetable.Current, error)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Spec is a standard 5-field cron expression for the check tick.
	Spec string
	Plan PlanOptions
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Dispatcher re-plans reminders from the current schedule on every tick and
// delivers those whose trigger time fell since the previous tick.
type Dispatcher struct {
	source   ScheduleSource
	notifier Notifier
	spec     string
	plan     PlanOptions
	now      func() time.Time

	mu       sync.Mutex
	lastTick time.Time
	cron     *cron.Cron
}

func NewDispatcher(source ScheduleSource, notifier Notifier, opts DispatcherOptions) *Dispatcher {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		source:   source,
		notifier: notifier,
		spec:     opts.Spec,
		plan:     opts.Plan.normalize(),
		now:      opts.Now,
	}
}

// Start schedules Tick with cron. It returns an error for an invalid spec.
func (d *Dispatcher) Start() error {
	c := cron.New(cron.WithLocation(d.plan.Location))
	if _, err := c.AddFunc(d.spec, func() {
		if _, err := d.Tick(context.Background()); err != nil {
			appLog.Error("reminder tick failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid notify cron %q: %w", d.spec, err)
	}
	d.mu.Lock()
	d.cron = c
	d.mu.Unlock()

	c.Start()
	appLog.Info("reminder dispatcher started", "cron", d.spec, "lead", d.plan.Lead)
	return nil
}

// Stop halts the cron loop and waits for a running tick.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Tick delivers reminders whose trigger lies in (previous tick, now]. The
// first tick looks back one minute. It returns how many were delivered.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.now()

	d.mu.Lock()
	since := d.lastTick
	if since.IsZero() {
		since = now.Add(-time.Minute)
	}
	d.lastTick = now
	d.mu.Unlock()

	cur, err := d.source.Current(ctx)
	if err != nil {
		return 0, err
	}
	if !cur.Found {
		return 0, nil
	}

	sent := 0
	for _, r := range Plan(cur.Result, since, d.plan) {
		if !r.TriggerAt.After(since) {
			continue
		}
		if r.TriggerAt.After(now) {
			break
		}
		if err := d.notifier.Notify(ctx, r); err != nil {
			appLog.Error("reminder delivery failed", err, "id", r.ID, "date", r.DateKey)
			continue
		}
		sent++
	}
	if sent > 0 {
		appLog.Debug("reminders delivered", "count", sent)
	}
	return sent, nil
}

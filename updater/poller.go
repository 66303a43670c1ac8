// Package updater installs pending device updates through Home Assistant, one
// device at a time: trigger the install, then poll the update entity until it
// reports completion or the wait runs out.
package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/HughODwyer90/hugh.casa/data"
	"github.com/HughODwyer90/hugh.casa/homeassistant"
	"github.com/HughODwyer90/hugh.casa/retry"
)

const (
	// StateAvailable is the state of an update entity with a pending update.
	StateAvailable = "on"
	// StateUpToDate is the state of an update entity with nothing to install.
	StateUpToDate = "off"

	DefaultPollInterval  = time.Minute
	DefaultMaxPolls      = 60
	DefaultProgressEvery = 5
	DefaultTriggerDelay  = 5 * time.Second

	triggerAttempts = 2
)

// HomeAssistant is the part of the Home Assistant API the poller needs.
type HomeAssistant interface {
	State(ctx context.Context, entityID string) (*data.HAEntity, error)
	InstallUpdate(ctx context.Context, entityID string) error
}

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCompleted
	OutcomeTimedOut
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Result struct {
	EntityID string
	Outcome  Outcome
	Polls    int
	Reason   string
	Err      error
	Started  time.Time
	Finished time.Time
}

type Config struct {
	PollInterval  time.Duration
	MaxPolls      int
	ProgressEvery int
	TriggerDelay  time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type Poller struct {
	ha            HomeAssistant
	interval      time.Duration
	maxPolls      int
	progressEvery int
	triggerDelay  time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
}

// New returns a poller. Zero values in cfg take the package defaults.
func New(ha HomeAssistant, cfg Config) *Poller {
	p := &Poller{
		ha:            ha,
		interval:      cfg.PollInterval,
		maxPolls:      cfg.MaxPolls,
		progressEvery: cfg.ProgressEvery,
		triggerDelay:  cfg.TriggerDelay,
		sleep:         cfg.Sleep,
		now:           cfg.Now,
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.triggerDelay <= 0 {
		p.triggerDelay = DefaultTriggerDelay
	}
	if p.maxPolls <= 0 {
		p.maxPolls = DefaultMaxPolls
	}
	if p.progressEvery <= 0 {
		p.progressEvery = DefaultProgressEvery
	}
	if p.sleep == nil {
		p.sleep = retry.Wait
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// session tracks one install from trigger to terminal outcome.
type session struct {
	entityID    string
	startedAt   time.Time
	deadline    time.Time
	interval    time.Duration
	lastStatus  string
	sawProgress bool // the entity reported a running install
}

// expired reports whether the session deadline has passed at now.
func (s *session) expired(now time.Time) bool {
	return !now.Before(s.deadline)
}

// logProgress reports whether poll number poll is logged: the first poll and
// every nth after it.
func logProgress(poll, every int) bool {
	return poll == 1 || (every > 0 && poll%every == 0)
}

// Stalled reports whether e shows no install running while its versions
// still differ. Seen after an install was running, the install failed.
func Stalled(e *data.HAEntity) bool {
	installed, latest := e.Attributes.InstalledVersion, e.Attributes.LatestVersion
	return !e.Attributes.InProgress.Active && installed != "" && latest != "" && installed != latest
}

// IsEligible reports whether e has an update available and no install running.
func IsEligible(e *data.HAEntity) bool {
	return e != nil && e.State == StateAvailable && !e.Attributes.InProgress.Active
}

// IsComplete reports whether the install on e has finished. Matching
// installed and latest versions win over the in_progress flag; the flag is
// only consulted when the entity does not report versions.
func IsComplete(e *data.HAEntity) bool {
	installed, latest := e.Attributes.InstalledVersion, e.Attributes.LatestVersion
	if installed != "" && latest != "" {
		return installed == latest
	}
	if e.State == StateUpToDate {
		return true
	}
	return !e.Attributes.InProgress.Active
}

// Trigger asks Home Assistant to install the update, retrying once.
func (p *Poller) Trigger(ctx context.Context, entityID string) error {
	policy := retry.Policy{Attempts: triggerAttempts, Delay: p.triggerDelay, Sleep: p.sleep}
	_, err := retry.Do(ctx, policy, "install "+entityID, func(ctx context.Context, _ int) error {
		return p.ha.InstallUpdate(ctx, entityID)
	})
	return err
}

// AwaitCompletion polls entityID until it completes, MaxPolls reads have been
// made or the session deadline (start + MaxPolls*PollInterval) has passed.
// The first read happens immediately. An install that was seen running and
// then stops short of the latest version fails without waiting further.
func (p *Poller) AwaitCompletion(ctx context.Context, entityID string) Result {
	start := p.now()
	s := &session{
		entityID:  entityID,
		startedAt: start,
		deadline:  start.Add(time.Duration(p.maxPolls) * p.interval),
		interval:  p.interval,
	}
	res := Result{EntityID: entityID, Started: start}

	for poll := 1; poll <= p.maxPolls; poll++ {
		res.Polls = poll
		e, err := p.ha.State(ctx, entityID)
		if err != nil {
			s.lastStatus = "unknown"
			glog.Warningf("update %s: poll %d: unable to read state: %s", entityID, poll, err)
		} else {
			s.lastStatus = e.State
			if IsComplete(e) {
				res.Outcome = OutcomeCompleted
				res.Finished = p.now()
				glog.Infof("update complete for %s after %d poll(s)", entityID, poll)
				return res
			}
			if s.sawProgress && Stalled(e) {
				res.Outcome = OutcomeFailed
				res.Err = fmt.Errorf("install on %s stopped at %s, latest is %s",
					entityID, e.Attributes.InstalledVersion, e.Attributes.LatestVersion)
				res.Finished = p.now()
				glog.Warningf("update %s stopped without installing %s", entityID, e.Attributes.LatestVersion)
				return res
			}
			if e.Attributes.InProgress.Active {
				s.sawProgress = true
			}
		}
		if logProgress(poll, p.progressEvery) {
			glog.Infof("waiting for %s: poll %d/%d, state %q, deadline %s",
				entityID, poll, p.maxPolls, s.lastStatus, s.deadline.Format(time.TimeOnly))
		}
		if poll == p.maxPolls || s.expired(p.now()) {
			break
		}
		if err := p.sleep(ctx, s.interval); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("wait for %s interrupted: %w", entityID, err)
			res.Finished = p.now()
			return res
		}
	}

	res.Outcome = OutcomeTimedOut
	res.Err = fmt.Errorf("%s still %q after %d polls", entityID, s.lastStatus, res.Polls)
	res.Finished = p.now()
	glog.Warningf("timeout waiting for %s to finish updating", entityID)
	return res
}

// Update runs the whole sequence for one entity: check eligibility, trigger,
// wait.
func (p *Poller) Update(ctx context.Context, entityID string) Result {
	start := p.now()
	e, err := p.ha.State(ctx, entityID)
	switch {
	case errors.Is(err, homeassistant.ErrNotFound):
		return p.finish(Result{EntityID: entityID, Outcome: OutcomeSkipped, Reason: "entity not found", Started: start})
	case err != nil:
		return p.finish(Result{EntityID: entityID, Outcome: OutcomeFailed, Err: err, Started: start})
	case !IsEligible(e):
		reason := fmt.Sprintf("state %q", e.State)
		if e.Attributes.InProgress.Active {
			reason = "install already in progress"
		}
		return p.finish(Result{EntityID: entityID, Outcome: OutcomeSkipped, Reason: reason, Started: start})
	}

	glog.Infof("installing update for %s (%s -> %s)", entityID, e.Attributes.InstalledVersion, e.Attributes.LatestVersion)
	if err := p.Trigger(ctx, entityID); err != nil {
		return p.finish(Result{EntityID: entityID, Outcome: OutcomeFailed, Err: fmt.Errorf("unable to trigger install: %w", err), Started: start})
	}
	res := p.AwaitCompletion(ctx, entityID)
	res.Started = start
	return res
}

// Run updates the entities in the given order. Each entity reaches a
// terminal outcome before the next one is looked at.
func (p *Poller) Run(ctx context.Context, entityIDs []string) []Result {
	results := make([]Result, 0, len(entityIDs))
	for _, id := range entityIDs {
		results = append(results, p.Update(ctx, id))
	}
	return results
}

func (p *Poller) finish(res Result) Result {
	res.Finished = p.now()
	switch res.Outcome {
	case OutcomeSkipped:
		glog.V(1).Infof("skipping %s: %s", res.EntityID, res.Reason)
	case OutcomeFailed:
		glog.Warningf("update %s failed: %s", res.EntityID, res.Err)
	}
	return res
}

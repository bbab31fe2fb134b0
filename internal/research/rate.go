package research

import (
	"time"

	"go.uber.org/zap"
)

// Outcome classifies the result of processing one entity. A fallback profile
// counts as degraded, not success: the invoker could not genuinely research,
// typically because of provider-side rate limiting, so the controller must
// treat it like an error when deciding whether to back off.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeFallback:
		return "fallback"
	}
	return "unknown"
}

// State is the rate controller's current mode.
type State int

const (
	StateNormal State = iota
	StateBackoff
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateBackoff:
		return "backoff"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Controller adapts the inter-request delay to a stream of per-entity
// outcomes. One success resets the delay fully to baseline; provider rate
// limits are binary (within-window or not), so a quick full recovery beats
// gradual decay. Run-scoped: a fresh run always starts at baseline.
type Controller struct {
	base       time.Duration
	max        time.Duration
	abortAfter int

	delay       time.Duration
	consecutive int
	state       State
}

const (
	// backoffThreshold is the consecutive-failure count at which the delay
	// starts doubling.
	backoffThreshold = 2

	// defaultAbortAfter is the consecutive-failure count at which the run
	// aborts.
	defaultAbortAfter = 5
)

// NewController creates a Controller at baseline delay. max caps delay
// growth; abortAfter <= 0 selects the default of 5.
func NewController(base, max time.Duration, abortAfter int) *Controller {
	if abortAfter <= 0 {
		abortAfter = defaultAbortAfter
	}
	return &Controller{
		base:       base,
		max:        max,
		abortAfter: abortAfter,
		delay:      base,
		state:      StateNormal,
	}
}

// Observe feeds one outcome into the controller and returns the new state.
// Aborted is terminal: further outcomes do not change state.
func (c *Controller) Observe(o Outcome) State {
	if c.state == StateAborted {
		return StateAborted
	}

	if o == OutcomeSuccess {
		c.consecutive = 0
		c.delay = c.base
		c.state = StateNormal
		return c.state
	}

	c.consecutive++
	if c.consecutive >= backoffThreshold {
		doubled := c.delay * 2
		if doubled > c.max {
			doubled = c.max
		}
		c.delay = doubled
		c.state = StateBackoff
		zap.L().Warn("rate controller: backing off",
			zap.Int("consecutive_failures", c.consecutive),
			zap.Duration("delay", c.delay),
		)
	}
	if c.consecutive >= c.abortAfter {
		c.state = StateAborted
		zap.L().Error("rate controller: aborting run after consecutive failures",
			zap.Int("consecutive_failures", c.consecutive),
		)
	}
	return c.state
}

// Delay returns the current inter-request delay.
func (c *Controller) Delay() time.Duration { return c.delay }

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// ConsecutiveFailures returns the failure count since the last success.
func (c *Controller) ConsecutiveFailures() int { return c.consecutive }

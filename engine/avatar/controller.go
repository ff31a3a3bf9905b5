package avatar

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultAnimationWindow = 500 * time.Millisecond

// generateFunc is the orchestrator hook the state machine fires when an
// expression or pose change demands a fresh image. The controller awaits it
// so ExecuteCommands keeps strict FIFO ordering.
type generateFunc func(ctx context.Context) error

// Controller owns the avatar state and applies commands to it.
type Controller struct {
	log  *zap.Logger
	subs *subscriberList

	mu    sync.Mutex
	state State

	// animGen invalidates stale animation-reset timers: a timer only clears
	// IsAnimating when its generation is still the latest.
	animGen   atomic.Int64
	animTimer *time.Timer

	generate generateFunc
}

func NewController(log *zap.Logger) *Controller {
	return &Controller{
		log:   log,
		subs:  newSubscriberList(log),
		state: NewState(),
	}
}

// SetGenerateHook wires the orchestrator in after construction. Without a
// hook, expression/pose changes mutate state but never trigger generation.
func (c *Controller) SetGenerateHook(fn generateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generate = fn
}

// Subscribe registers a state callback, invoked after every mutation.
// Returns an unsubscribe function.
func (c *Controller) Subscribe(cb Subscriber) func() {
	return c.subs.add(cb)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState replaces the whole state with a restored snapshot. The image
// reference is deliberately not restored: a stale provider URL may violate
// the provider's terms and a dead blob reference is worse than none.
func (c *Controller) SetState(snapshot State) {
	c.mu.Lock()
	snapshot.ImageURL = ""
	snapshot.IsGenerating = false
	snapshot.LastUpdate = time.Now()
	c.state = snapshot
	state := c.state
	c.mu.Unlock()

	c.subs.notify(state)
}

// ApplyCommand mutates state per the command's fields, in fixed order:
// hide, show, expression, pose, action, gesture, scale, fade, pulse. Show is
// evaluated after hide, so a command carrying both ends visible. An
// expression or pose value that differs from the current one marks the
// avatar for regeneration; the trigger fires only while visible and is
// awaited so callers can sequence commands. A generation failure is logged
// and left on the state record, never returned.
func (c *Controller) ApplyCommand(ctx context.Context, cmd Command) error {
	c.mu.Lock()

	needsImage := false

	if cmd.Hide != nil && *cmd.Hide {
		c.state.Visible = false
	}
	if cmd.Show != nil && *cmd.Show {
		c.state.Visible = true
	}
	if cmd.Expression != nil && *cmd.Expression != c.state.Expression {
		c.state.Expression = *cmd.Expression
		needsImage = true
	}
	if cmd.Pose != nil && *cmd.Pose != c.state.Pose {
		c.state.Pose = *cmd.Pose
		needsImage = true
	}
	if cmd.Action != nil {
		c.state.Action = *cmd.Action
	}
	if cmd.Gesture != nil {
		c.state.Gesture = *cmd.Gesture
	}
	if cmd.Position != nil {
		c.state.Position = *cmd.Position
	}
	if cmd.Scale != nil && !math.IsNaN(*cmd.Scale) {
		c.state.Scale = *cmd.Scale
	}
	if cmd.Fade != nil && *cmd.Fade {
		c.state.Opacity = fadedOpacity
	}
	if cmd.Pulse != nil {
		c.state.Pulse = *cmd.Pulse
	}
	if len(cmd.Unknown) > 0 {
		c.log.Warn("Command carried unknown tag keys", zap.Strings("keys", cmd.Unknown))
	}

	c.state.LastUpdate = time.Now()
	c.state.IsAnimating = true

	window := defaultAnimationWindow
	if cmd.Duration != nil && *cmd.Duration > 0 {
		window = time.Duration(*cmd.Duration) * time.Millisecond
	}
	c.scheduleAnimationResetLocked(window)

	visible := c.state.Visible
	generate := c.generate
	state := c.state
	c.mu.Unlock()

	c.subs.notify(state)

	if needsImage && visible && generate != nil {
		if err := generate(ctx); err != nil {
			// The failure already landed on the state record; later
			// commands in a batch still apply.
			c.log.Warn("Triggered generation failed", zap.Error(err))
		}
	}
	return nil
}

// scheduleAnimationResetLocked arms a cancellable reset keyed to a fresh
// animation generation. A newer command bumps the generation, so an older
// in-flight timer can no longer clear IsAnimating out from under it.
func (c *Controller) scheduleAnimationResetLocked(window time.Duration) {
	gen := c.animGen.Add(1)
	if c.animTimer != nil {
		c.animTimer.Stop()
	}
	c.animTimer = time.AfterFunc(window, func() {
		if c.animGen.Load() != gen {
			return
		}
		c.mu.Lock()
		c.state.IsAnimating = false
		c.state.Pulse = false
		c.state.LastUpdate = time.Now()
		state := c.state
		c.mu.Unlock()
		c.subs.notify(state)
	})
}

// ExecuteCommands applies commands strictly sequentially, awaiting each
// one's triggered generation before starting the next.
func (c *Controller) ExecuteCommands(ctx context.Context, cmds []Command) error {
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.ApplyCommand(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Close stops any armed animation timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.animGen.Add(1)
	if c.animTimer != nil {
		c.animTimer.Stop()
		c.animTimer = nil
	}
}

// mutate applies fn under the lock, refreshes LastUpdate, and notifies
// subscribers exactly once. Used by the orchestrator for generation
// bookkeeping.
func (c *Controller) mutate(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.LastUpdate = time.Now()
	state := c.state
	c.mu.Unlock()
	c.subs.notify(state)
}

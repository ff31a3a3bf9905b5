// Package avatar owns the on-screen character: its single mutable state
// record, the command state machine that mutates it, and the generation
// orchestrator that produces new images when the look changes.
package avatar

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Opacity applied by a fade command.
const fadedOpacity = 0.4

// State is the externally observable avatar record. Subscribers receive
// copies; the controller owns the only mutable instance.
type State struct {
	Visible    bool    `json:"visible"`
	Expression string  `json:"expression"`
	Pose       string  `json:"pose"`
	Action     string  `json:"action"`
	Gesture    string  `json:"gesture,omitempty"`
	Position   string  `json:"position,omitempty"`
	Scale      float64 `json:"scale"`
	Opacity    float64 `json:"opacity"`

	IsAnimating  bool   `json:"isAnimating"`
	IsGenerating bool   `json:"isGenerating"`
	HasError     bool   `json:"hasError"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Pulse        bool   `json:"pulse,omitempty"`

	// ImageURL may be a locally-owned reference (blob:/file: scheme) that the
	// orchestrator is responsible for releasing on replacement.
	ImageURL   string    `json:"imageUrl,omitempty"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// NewState returns the neutral defaults the avatar starts with.
func NewState() State {
	return State{
		Visible:    true,
		Expression: "neutral",
		Pose:       "standing",
		Action:     "none",
		Scale:      1.0,
		Opacity:    1.0,
		LastUpdate: time.Now(),
	}
}

// Subscriber receives a state snapshot after every mutation.
type Subscriber func(State)

// subscriberList fans state snapshots out to registered callbacks. Panics in
// a callback are contained so one bad subscriber cannot take the engine down.
type subscriberList struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs []Subscriber
}

func newSubscriberList(log *zap.Logger) *subscriberList {
	return &subscriberList{log: log}
}

// add registers a callback and returns an unsubscribe function.
func (l *subscriberList) add(cb Subscriber) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, cb)
	index := len(l.subs) - 1

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if index < len(l.subs) {
			l.subs[index] = nil
		}
	}
}

func (l *subscriberList) notify(state State) {
	l.mu.RLock()
	subs := make([]Subscriber, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	for _, cb := range subs {
		if cb == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.log.Error("State subscriber panicked", zap.Any("panic", r))
				}
			}()
			cb(state)
		}()
	}
}

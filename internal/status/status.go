// Package status carries fire-and-forget progress updates from the engines to
// whoever is running them.
package status

import (
	"time"

	"go.uber.org/zap"
)

// KindStatus is the event kind used for engine progress messages.
const KindStatus = "status"

// Sink receives status events. Implementations must not block the caller.
type Sink interface {
	Status(kind, message string)
}

// Func adapts a function to a Sink.
type Func func(kind, message string)

// Status calls f(kind, message).
func (f Func) Status(kind, message string) { f(kind, message) }

type nop struct{}

func (nop) Status(string, string) {}

// Nop returns a Sink that discards every event.
func Nop() Sink { return nop{} }

// Logger returns a Sink that writes events to l at info level.
func Logger(l *zap.Logger) Sink {
	return Func(func(kind, message string) {
		l.Info(message, zap.String("kind", kind))
	})
}

// Progress throttling defaults.
const (
	DefaultEvery    = 10000
	DefaultInterval = 3 * time.Second
)

// Throttle decides when a periodic progress event is due: every Every items
// or when Interval has passed since the last event, whichever comes first.
type Throttle struct {
	Every    int
	Interval time.Duration
	Now      func() time.Time

	last time.Time
}

// NewThrottle returns a Throttle with the default cadence.
func NewThrottle() *Throttle {
	return &Throttle{Every: DefaultEvery, Interval: DefaultInterval, Now: time.Now}
}

// Start resets the interval clock.
func (t *Throttle) Start() {
	t.last = t.now()
}

// Due reports whether an event should be emitted after count items.
func (t *Throttle) Due(count int) bool {
	now := t.now()
	if (t.Every > 0 && count > 0 && count%t.Every == 0) || (t.Interval > 0 && now.Sub(t.last) >= t.Interval) {
		t.last = now
		return true
	}
	return false
}

func (t *Throttle) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

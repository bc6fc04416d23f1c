// Package timectrl drives the host refresh loop. The trajectory core never
// loops or sleeps; this controller decides when a frame is due and hands the
// frame time to registered listeners.
package timectrl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock is the read side of the controller.
type Clock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances frame time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners return while still
	// stepping by Interval.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "realtime" or "accelerated", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime", "real-time", "":
		return RealTime, nil
	case "accelerated":
		return Accelerated, nil
	default:
		return RealTime, fmt.Errorf("unknown refresh mode %q", s)
	}
}

// Listener is invoked once per frame with the frame time. A listener that
// returns an error stops the loop.
type Listener func(ctx context.Context, at time.Time) error

// ErrUnbounded is returned when an accelerated loop is started without a
// duration.
var ErrUnbounded = errors.New("timectrl: accelerated mode requires a positive duration")

// TimeController drives frame time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Interval  time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, interval time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Interval:    interval,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the time of the most recent frame.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run emits a frame at StartTime and then one per Interval until duration has
// elapsed, ctx is cancelled, or a listener fails. A zero duration runs until
// cancellation. Cancellation is not an error.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	if tc.Interval <= 0 {
		return fmt.Errorf("timectrl: interval must be positive, got %s", tc.Interval)
	}
	if tc.Mode == Accelerated && duration <= 0 {
		return ErrUnbounded
	}

	var ticks <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	frameTime := tc.StartTime
	elapsed := time.Duration(0)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := tc.emit(ctx, frameTime); err != nil {
			return err
		}
		if duration > 0 && elapsed >= duration {
			return nil
		}

		if ticks != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticks:
			}
		}
		frameTime = frameTime.Add(tc.Interval)
		elapsed += tc.Interval
	}
}

// Start runs the controller in a separate goroutine. The returned channel
// receives the loop's result and is then closed.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, duration)
	}()
	return done
}

func (tc *TimeController) emit(ctx context.Context, at time.Time) error {
	tc.mu.Lock()
	tc.currentTime = at
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		if err := fn(ctx, at); err != nil {
			return err
		}
	}
	return nil
}

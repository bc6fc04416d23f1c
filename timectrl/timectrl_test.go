package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

var start = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestTimeControllerSetTime(t *testing.T) {
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestAcceleratedRunEmitsEveryInterval(t *testing.T) {
	tc := NewTimeController(start, 30*time.Second, Accelerated)
	var got []time.Time
	tc.AddListener(func(_ context.Context, at time.Time) error {
		got = append(got, at)
		return nil
	})

	if err := tc.Run(context.Background(), 90*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("frames = %d, want 4", len(got))
	}
	for i, at := range got {
		want := start.Add(time.Duration(i) * 30 * time.Second)
		if !at.Equal(want) {
			t.Fatalf("frame %d at %v, want %v", i, at, want)
		}
	}
	if now := tc.Now(); !now.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Now() = %v, want %v", now, start.Add(90*time.Second))
	}
}

func TestRealTimeStartUpdatesNow(t *testing.T) {
	tc := NewTimeController(start, 5*time.Millisecond, RealTime)

	done := tc.Start(context.Background(), 15*time.Millisecond)
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tc := NewTimeController(start, time.Hour, RealTime)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	tc.AddListener(func(context.Context, time.Time) error {
		calls++
		cancel()
		return nil
	})

	select {
	case err := <-tc.Start(ctx, 0):
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("listener calls = %d, want 1", calls)
	}
}

func TestRunStopsOnListenerError(t *testing.T) {
	tc := NewTimeController(start, time.Second, Accelerated)
	boom := errors.New("boom")
	tc.AddListener(func(context.Context, time.Time) error { return boom })

	if err := tc.Run(context.Background(), time.Minute); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want %v", err, boom)
	}
}

func TestRunRejectsBadSettings(t *testing.T) {
	if err := NewTimeController(start, time.Second, Accelerated).Run(context.Background(), 0); !errors.Is(err, ErrUnbounded) {
		t.Fatalf("unbounded accelerated Run = %v, want ErrUnbounded", err)
	}
	if err := NewTimeController(start, 0, RealTime).Run(context.Background(), time.Second); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "realtime", want: RealTime},
		{in: "Accelerated", want: Accelerated},
		{in: "", want: RealTime},
		{in: "warp", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

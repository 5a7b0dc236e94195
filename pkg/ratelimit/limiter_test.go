package ratelimit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock provides a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)}
	l := New(cfg, zerolog.Nop())
	l.now = clock.now
	return l, clock
}

func TestCheck_AdmitsUpToShortLimit(t *testing.T) {
	l, _ := newTestLimiter(Config{
		ShortWindow:   1 * time.Second,
		ShortLimit:    3,
		LongWindow:    60 * time.Second,
		LongLimit:     100,
		LoadThreshold: 0,
	})

	for i := 0; i < 3; i++ {
		adm := l.Check()
		if !adm.Allowed || adm.LoadShedding {
			t.Fatalf("Check() #%d = %+v, want full admission", i+1, adm)
		}
	}

	adm := l.Check()
	if adm.Allowed {
		t.Errorf("Check() after limit = %+v, want rejected", adm)
	}
}

func TestCheck_ShortWindowEviction(t *testing.T) {
	l, clock := newTestLimiter(Config{
		ShortWindow:   1 * time.Second,
		ShortLimit:    2,
		LongWindow:    60 * time.Second,
		LongLimit:     100,
		LoadThreshold: 0,
	})

	l.Check()
	l.Check()
	if adm := l.Check(); adm.Allowed {
		t.Fatalf("Check() at capacity = %+v, want rejected", adm)
	}

	// After the short window passes, capacity is available again.
	clock.advance(1100 * time.Millisecond)
	if adm := l.Check(); !adm.Allowed {
		t.Errorf("Check() after window elapsed = %+v, want admitted", adm)
	}
}

func TestCheck_LongWindowRejection(t *testing.T) {
	l, clock := newTestLimiter(Config{
		ShortWindow:   1 * time.Second,
		ShortLimit:    10,
		LongWindow:    60 * time.Second,
		LongLimit:     4,
		LoadThreshold: 0,
	})

	// Spread admissions so the short window never fills.
	for i := 0; i < 4; i++ {
		if adm := l.Check(); !adm.Allowed {
			t.Fatalf("Check() #%d rejected before long limit reached", i+1)
		}
		clock.advance(2 * time.Second)
	}

	if adm := l.Check(); adm.Allowed {
		t.Errorf("Check() over long limit = %+v, want rejected", adm)
	}

	// Old admissions age out of the long window.
	clock.advance(55 * time.Second)
	if adm := l.Check(); !adm.Allowed {
		t.Errorf("Check() after long window elapsed = %+v, want admitted", adm)
	}
}

func TestCheck_LoadShedding(t *testing.T) {
	l, _ := newTestLimiter(Config{
		ShortWindow:   1 * time.Second,
		ShortLimit:    4,
		LongWindow:    60 * time.Second,
		LongLimit:     100,
		LoadThreshold: 2,
	})

	// Occupancy 0 and 1 admit normally; at 2 (= limit - threshold) shedding starts.
	for i := 0; i < 2; i++ {
		adm := l.Check()
		if !adm.Allowed || adm.LoadShedding {
			t.Fatalf("Check() #%d = %+v, want full admission", i+1, adm)
		}
	}

	adm := l.Check()
	if !adm.Allowed || !adm.LoadShedding {
		t.Fatalf("Check() in shedding band = %+v, want load shedding", adm)
	}
}

func TestCheck_SheddingDoesNotConsumeCapacity(t *testing.T) {
	l, _ := newTestLimiter(Config{
		ShortWindow:   1 * time.Second,
		ShortLimit:    3,
		LongWindow:    60 * time.Second,
		LongLimit:     100,
		LoadThreshold: 1,
	})

	l.Check()
	l.Check()

	// Every further check in the same second sheds; none is recorded, so the
	// limiter never escalates to a hard reject through the short window.
	for i := 0; i < 20; i++ {
		adm := l.Check()
		if !adm.Allowed || !adm.LoadShedding {
			t.Fatalf("Check() #%d = %+v, want load shedding", i+3, adm)
		}
	}
}

func TestEvict(t *testing.T) {
	base := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	window := []time.Time{
		base,
		base.Add(1 * time.Second),
		base.Add(2 * time.Second),
	}

	tests := []struct {
		name   string
		cutoff time.Time
		want   int
	}{
		{name: "nothing_expired", cutoff: base.Add(-1 * time.Second), want: 3},
		{name: "first_expired", cutoff: base, want: 2},
		{name: "all_expired", cutoff: base.Add(5 * time.Second), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evict(window, tt.cutoff)
			if len(got) != tt.want {
				t.Errorf("evict() kept %d timestamps, want %d", len(got), tt.want)
			}
		})
	}
}

package retry

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDelaySpec_Resolve(t *testing.T) {
	t.Parallel()

	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }

	tests := []struct {
		name    string
		spec    DelaySpec
		retries int
		want    []time.Duration
	}{
		{
			name:    "scalar reused for every retry",
			spec:    Fixed(sec(1)),
			retries: 3,
			want:    []time.Duration{sec(1), sec(1), sec(1)},
		},
		{
			name:    "sequence resolved in order",
			spec:    Sequence(sec(1), sec(2), sec(3)),
			retries: 3,
			want:    []time.Duration{sec(1), sec(2), sec(3)},
		},
		{
			name:    "short sequence repeats last value",
			spec:    Sequence(sec(1), sec(2)),
			retries: 3,
			want:    []time.Duration{sec(1), sec(2), sec(2)},
		},
		{
			name:    "zero spec never waits",
			spec:    DelaySpec{},
			retries: 2,
			want:    []time.Duration{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []time.Duration
			for n := 1; n <= tt.retries; n++ {
				got = append(got, tt.spec.Resolve(n))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("delay sequence = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 3}

	for attempt := 1; attempt <= 3; attempt++ {
		if !p.ShouldRetry(attempt) {
			t.Fatalf("attempt %d must be retried with budget 3", attempt)
		}
	}
	if p.ShouldRetry(4) {
		t.Fatalf("attempt 4 exhausts a budget of 3 retries")
	}
	if (Policy{}).ShouldRetry(1) {
		t.Fatalf("zero budget means a single attempt")
	}
}

func TestPolicy_DelayForJitter(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 1, Delay: Fixed(100 * time.Millisecond), JitterFactor: 0.5}

	for i := 0; i < 50; i++ {
		d := p.DelayFor(1)
		if d < 100*time.Millisecond || d >= 150*time.Millisecond {
			t.Fatalf("jittered delay %v out of [100ms, 150ms)", d)
		}
	}
}

func TestDelaySpec_Properties(t *testing.T) {
	t.Parallel()

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	genDelays := gen.SliceOfN(5, gen.IntRange(0, 3600)).SuchThat(func(v []int) bool {
		return len(v) > 0
	})

	properties.Property("past-the-end retries reuse the last element", prop.ForAll(
		func(secs []int, extra int) bool {
			ds := make([]time.Duration, len(secs))
			for i, s := range secs {
				ds[i] = time.Duration(s) * time.Second
			}
			spec := Sequence(ds...)
			last := ds[len(ds)-1]
			return spec.Resolve(len(ds)+extra) == last
		},
		genDelays,
		gen.IntRange(1, 100),
	))

	properties.Property("in-range retries resolve positionally", prop.ForAll(
		func(secs []int) bool {
			ds := make([]time.Duration, len(secs))
			for i, s := range secs {
				ds[i] = time.Duration(s) * time.Second
			}
			spec := Sequence(ds...)
			for n := 1; n <= len(ds); n++ {
				if spec.Resolve(n) != ds[n-1] {
					return false
				}
			}
			return true
		},
		genDelays,
	))

	properties.TestingRun(t)
}

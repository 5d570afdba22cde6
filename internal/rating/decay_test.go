package rating

import (
	"math"
	"testing"
	"time"
)

func TestRecencyWeightBounds(t *testing.T) {
	now := time.Now()
	if w := RecencyWeight(now, now, 45); w != 1 {
		t.Fatalf("expected weight 1 for a contest dated now, got %f", w)
	}

	prev := 1.0
	for days := 1; days <= 2000; days *= 2 {
		w := RecencyWeight(now.Add(-time.Duration(days)*24*time.Hour), now, 45)
		if w >= prev {
			t.Fatalf("weight must strictly decrease with age: %f >= %f at %d days", w, prev, days)
		}
		if w < 0 || w > 1 {
			t.Fatalf("weight out of [0,1]: %f", w)
		}
		prev = w
	}
	if prev > 1e-9 {
		t.Fatalf("weight should approach 0 for very old contests, got %f", prev)
	}
}

func TestRecencyWeightFutureContestClamped(t *testing.T) {
	now := time.Now()
	if w := RecencyWeight(now.Add(24*time.Hour), now, 45); w != 1 {
		t.Fatalf("future-dated contest should weigh 1, got %f", w)
	}
}

func TestClassFactorZeroPurse(t *testing.T) {
	if f := ClassFactor(0, 0.9, 1.4, 200000); f != 1 {
		t.Fatalf("classFactor(0) must be 1, got %f", f)
	}
	if f := ClassFactor(-500, 0.9, 1.4, 200000); f != 1 {
		t.Fatalf("negative purse must yield 1, got %f", f)
	}
}

func TestClassFactorBoundsAndMonotonicity(t *testing.T) {
	prev := 0.0
	for purse := 100.0; purse < 1e9; purse *= 3 {
		f := ClassFactor(purse, 0.9, 1.4, 200000)
		if f < 0.9 || f > 1.4 {
			t.Fatalf("classFactor out of [0.9, 1.4] at purse %f: %f", purse, f)
		}
		if f < prev {
			t.Fatalf("classFactor must be non-decreasing: %f < %f at purse %f", f, prev, purse)
		}
		prev = f
	}
}

func TestClassFactorReferencePurse(t *testing.T) {
	// At the reference purse the factor sits mid-range.
	f := ClassFactor(200000, 0.9, 1.4, 200000)
	if math.Abs(f-1.15) > 1e-9 {
		t.Fatalf("expected 1.15 at reference purse, got %f", f)
	}
}

func TestSeedRatingBounds(t *testing.T) {
	if s := SeedRating(0, 1000, 25, 800, 1200); s != 1000 {
		t.Fatalf("zero external score should seed the base, got %f", s)
	}
	if s := SeedRating(-50, 1000, 25, 800, 1200); s != 1000 {
		t.Fatalf("negative external score must clamp to base, got %f", s)
	}
	if s := SeedRating(1e12, 1000, 25, 800, 1200); s != 1200 {
		t.Fatalf("huge external score must clamp to max, got %f", s)
	}
	if s := SeedRating(100, 1000, -500, 800, 1200); s != 800 {
		t.Fatalf("seed must clamp to min, got %f", s)
	}
}

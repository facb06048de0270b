package scoring

import "testing"

func TestPointsBoundaries(t *testing.T) {
	cases := []struct {
		elapsed float64
		want    int
	}{
		{0, 1000},
		{5, 833},
		{15, 500},
		{29.9, 3},
		{30, 0},
		{45, 0},
		{-3, 1000},
	}
	for _, tc := range cases {
		if got := Points(tc.elapsed, 30); got != tc.want {
			t.Fatalf("Points(%v, 30) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestPointsNonIncreasing(t *testing.T) {
	prev := Points(0, 30)
	for e := 0.1; e <= 31; e += 0.1 {
		p := Points(e, 30)
		if p > prev {
			t.Fatalf("points increased from %d to %d at %.1fs", prev, p, e)
		}
		if p < 0 || p > MaxPoints {
			t.Fatalf("points %d out of range at %.1fs", p, e)
		}
		prev = p
	}
}

func TestPointsDefaultWindow(t *testing.T) {
	if got := Points(15, 0); got != 500 {
		t.Fatalf("expected default 30s window, got %d", got)
	}
}

func TestAwardIncorrect(t *testing.T) {
	if got := Award(false, 0, 30); got != 0 {
		t.Fatalf("incorrect answer awarded %d", got)
	}
	if got := Award(true, 5, 30); got != 833 {
		t.Fatalf("expected 833, got %d", got)
	}
}

package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/courier/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.NewConstant(250 * time.Millisecond)
	for _, attempt := range []int{1, 2, 10} {
		if got := c.Delay(attempt); got != 250*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 250ms", attempt, got)
		}
	}
}

func TestDefault_PowersOfTwo(t *testing.T) {
	bo := backoff.Default()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{6, 64 * time.Second},
		{10, 1024 * time.Second},
	}
	for _, tt := range tests {
		if got := bo.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelivery_Capped(t *testing.T) {
	bo := backoff.Delivery()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},
		{40, time.Minute},
	}
	for _, tt := range tests {
		if got := bo.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_Monotonic(t *testing.T) {
	bo := backoff.NewExponential(10*time.Millisecond, 0)
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := bo.Delay(attempt)
		if d < 2*prev {
			t.Fatalf("Delay(%d) = %v, want >= %v", attempt, d, 2*prev)
		}
		prev = d
	}
}

func TestExponential_Overflow(t *testing.T) {
	bo := backoff.NewExponential(time.Second, 0)
	if got := bo.Delay(200); got <= 0 {
		t.Errorf("Delay(200) = %v, want positive", got)
	}

	capped := backoff.NewExponential(time.Second, time.Hour)
	if got := capped.Delay(200); got != time.Hour {
		t.Errorf("capped Delay(200) = %v, want 1h", got)
	}
}

package backoff

import (
	"testing"
	"time"
)

func TestLinearDelay(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		max      time.Duration
		attempt  int
		expected time.Duration
	}{
		{"first retry", 5 * time.Second, 0, 1, 5 * time.Second},
		{"second retry", 5 * time.Second, 0, 2, 10 * time.Second},
		{"third retry", 5 * time.Second, 0, 3, 15 * time.Second},
		{"capped", 5 * time.Second, 12 * time.Second, 3, 12 * time.Second},
		{"no cap when max unset", 5 * time.Second, 0, 100, 500 * time.Second},
	}

	for _, test := range tests {
		s := NewLinear(test.base, test.max)
		if got := s.Delay(test.attempt); got != test.expected {
			t.Errorf("%s: Delay(%d) = %v, expected %v", test.name, test.attempt, got, test.expected)
		}
	}
}

func TestConstantDelay(t *testing.T) {
	s := NewConstant(2 * time.Second)
	for _, attempt := range []int{1, 2, 10} {
		if got := s.Delay(attempt); got != 2*time.Second {
			t.Errorf("Delay(%d) = %v, expected 2s", attempt, got)
		}
	}
}

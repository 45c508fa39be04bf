package puzzle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		limit      time.Duration
		elapsed    time.Duration
		multiplier int64
		moves      int
		want       string
	}{
		{name: "won", state: Won, limit: 90 * time.Second, elapsed: 30 * time.Second, multiplier: 2, moves: 3, want: "105"},
		{name: "fractional seconds", state: Won, limit: 90 * time.Second, elapsed: 12500 * time.Millisecond, multiplier: 1, want: "77.5"},
		{name: "lost", state: Lost, limit: 90 * time.Second, elapsed: 10 * time.Second, multiplier: 3, want: "0"},
		{name: "penalties floor at zero", state: Won, limit: 60 * time.Second, elapsed: 55 * time.Second, multiplier: 1, moves: 10, want: "0"},
		{name: "overtime", state: Won, limit: 60 * time.Second, elapsed: 70 * time.Second, multiplier: 3, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.state, tt.limit, tt.elapsed, tt.multiplier, tt.moves)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Score() = %s, want %s", got, tt.want)
			}
		})
	}
}

package puzzle

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovePenalty is deducted from a score for every rotation.
var MovePenalty = decimal.NewFromInt(5)

// Score rates a finished session: the seconds left on the clock times the
// difficulty multiplier, minus MovePenalty per move, floored at zero and
// rounded to two places. Lost sessions score zero.
func Score(state State, limit, elapsed time.Duration, multiplier int64, moves int) decimal.Decimal {
	if state != Won {
		return decimal.Zero
	}
	left := limit - elapsed
	if left < 0 {
		left = 0
	}
	score := decimal.NewFromFloat(left.Seconds()).
		Mul(decimal.NewFromInt(multiplier)).
		Sub(MovePenalty.Mul(decimal.NewFromInt(int64(moves))))
	if score.IsNegative() {
		return decimal.Zero
	}
	return score.Round(2)
}

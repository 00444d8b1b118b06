// Package reflection computes time-weighted reflection rewards.
//
//	multiplier = min(500, 100 + floor(holding_seconds / 86400) * 2)
//	reward     = floor(pool_balance * holder_balance * multiplier / 10_000_000)
//
// The triple product is evaluated with a 256-bit intermediate; a reward that
// does not fit in a u64 is an error.
package reflection

import (
	"fmt"

	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/model"
)

// maxGrowthDays is the number of full days after which the multiplier is
// capped.
const maxGrowthDays = int64(model.MaxMultiplier-model.BaseMultiplier) / model.MultiplierStepPerDay

// TimeMultiplier returns the holding multiplier for a holding period in
// seconds. A negative period (clock behind the last claim) counts as zero.
func TimeMultiplier(holdingSeconds int64) uint16 {
	if holdingSeconds < 0 {
		return model.BaseMultiplier
	}
	days := holdingSeconds / model.SecondsPerDay
	if days >= maxGrowthDays {
		return model.MaxMultiplier
	}
	return model.BaseMultiplier + uint16(days)*model.MultiplierStepPerDay
}

// Quote is a computed reward and the multiplier it was computed with.
type Quote struct {
	HoldingSeconds int64  `json:"holding_seconds"`
	Multiplier     uint16 `json:"multiplier"`
	Reward         uint64 `json:"reward"`
}

// Compute returns the reward for a holder with holderBalance tokens when the
// reflection pool holds poolBalance, given the current time and the last
// claim time.
func Compute(now, lastClaim int64, poolBalance, holderBalance uint64) (Quote, error) {
	held, err := fixedpoint.SubInt64(now, lastClaim)
	if err != nil {
		return Quote{}, fmt.Errorf("holding time: %w", err)
	}
	q := Quote{HoldingSeconds: held}
	q.Multiplier = TimeMultiplier(q.HoldingSeconds)
	reward, err := fixedpoint.MulMulDiv(poolBalance, holderBalance, uint64(q.Multiplier), model.RewardDivisor)
	if err != nil {
		return Quote{}, fmt.Errorf("reflection reward: %w", err)
	}
	q.Reward = reward
	return q, nil
}

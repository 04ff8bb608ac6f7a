package rewards

import (
	"errors"
	"math/big"
)

// Stable error identifiers shared by both accrual instantiations.
var (
	ErrNoLiquidity    = errors.New("No Liquidity in Pool")
	ErrCooldownNotMet = errors.New("Reward cooldown period not met")
	ErrNothingToClaim = errors.New("No rewards to claim")
)

// Position is the per-principal accrual state: the deposited amount and the
// checkpoint the next reward is measured from.
type Position struct {
	Amount        *big.Int
	LastTimestamp uint64
}

// Clone returns a deep copy so callers cannot mutate shared pointers.
func (p Position) Clone() Position {
	clone := Position{LastTimestamp: p.LastTimestamp}
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return clone
}

// ParamSource supplies the live accrual parameters. The liquidity factory
// implements it so pools pick up admin rate/period updates immediately; the
// staking vault implements it over its own setters.
type ParamSource interface {
	RewardRate() *big.Int
	RewardPeriodSeconds() uint64
}

// Engine computes time-gated rewards on a principal amount. The reward period
// is a hard gate: no reward accrues until a full period has elapsed since the
// last checkpoint, and there is no partial-period interpolation. Discrete
// gating sidesteps the precision loss of repeated small divisions and matches
// a claim-once-per-cooldown distribution policy.
//
// The scale divisor converts the rate parameter into token units: the
// liquidity pool quotes its rate against PoolScale, the staking vault against
// VaultScale (a parts-per-100000 daily percentage).
type Engine struct {
	params ParamSource
	scale  *big.Int
}

// PoolScale is the divisor applied to the liquidity pool reward rate.
var PoolScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)

// VaultScale is the divisor applied to the staking vault's daily rate,
// expressed in parts per 100000.
var VaultScale = big.NewInt(100_000)

// NewEngine constructs an accrual engine over the supplied parameter source.
func NewEngine(params ParamSource, scale *big.Int) *Engine {
	return &Engine{params: params, scale: new(big.Int).Set(scale)}
}

// Pending returns the reward currently owed to the position. The aggregate is
// the pool- or vault-wide principal; accrual over an empty pool is a hard
// error rather than a zero so callers can distinguish "nothing deposited
// anywhere" from "cooldown not met".
func (e *Engine) Pending(pos Position, aggregate *big.Int, now uint64) (*big.Int, error) {
	if e == nil || e.params == nil {
		return nil, errors.New("rewards: engine not configured")
	}
	if aggregate == nil || aggregate.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	if pos.Amount == nil || pos.Amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if !e.cooldownMet(pos.LastTimestamp, now) {
		return big.NewInt(0), nil
	}
	rate := e.params.RewardRate()
	if rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	// One reward tranche per fully elapsed period boundary; integer division,
	// no partial-period interpolation.
	periods := uint64(1)
	if period := e.params.RewardPeriodSeconds(); period > 0 {
		periods = (now - pos.LastTimestamp) / period
	}
	reward := new(big.Int).Mul(pos.Amount, rate)
	reward.Mul(reward, new(big.Int).SetUint64(periods))
	reward.Quo(reward, e.scale)
	return reward, nil
}

// Settle pays out any pending reward and advances the checkpoint. It mutates
// the position only when a reward is actually owed; the caller applies the
// returned amount to its aggregate and token balances. Every principal
// mutation settles first so the reward is always computed on the pre-mutation
// amount.
func (e *Engine) Settle(pos *Position, aggregate *big.Int, now uint64) (*big.Int, error) {
	if pos == nil {
		return big.NewInt(0), nil
	}
	reward, err := e.Pending(*pos, aggregate, now)
	if err != nil {
		return nil, err
	}
	if reward.Sign() > 0 {
		pos.LastTimestamp = now
	}
	return reward, nil
}

// Claim is the explicit entry point: an unmet cooldown and a zero settlement
// are both failures rather than silent zeros.
func (e *Engine) Claim(pos *Position, aggregate *big.Int, now uint64) (*big.Int, error) {
	if pos == nil {
		return nil, ErrNothingToClaim
	}
	if !e.cooldownMet(pos.LastTimestamp, now) {
		return nil, ErrCooldownNotMet
	}
	reward, err := e.Settle(pos, aggregate, now)
	if err != nil {
		return nil, err
	}
	if reward.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	return reward, nil
}

func (e *Engine) cooldownMet(last, now uint64) bool {
	period := e.params.RewardPeriodSeconds()
	if period == 0 {
		return true
	}
	if now < last {
		return false
	}
	return now-last >= period
}

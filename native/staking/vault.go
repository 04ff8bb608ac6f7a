package staking

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nuchain/core/events"
	nativecommon "nuchain/native/common"
	"nuchain/native/rewards"
	"nuchain/native/token"
)

// ErrAmountTooLow rejects stakes below the minimum and zero-amount
// withdrawals.
var ErrAmountTooLow = errors.New("Amount too low")

// ErrZeroRewardRate rejects a zero daily reward rate.
var ErrZeroRewardRate = errors.New("Reward Rate cannot be equal to zero")

// Vault defaults.
var (
	// DefaultRewardRate is the daily reward in parts per 100000 of the
	// staked amount.
	DefaultRewardRate = big.NewInt(100_000)
	// DefaultMinimumStake is the smallest accepted stake: ten whole tokens.
	DefaultMinimumStake = new(big.Int).Mul(big.NewInt(10), token.Unit)
)

// DefaultRewardPeriodSeconds is the vault's accrual cooldown: one day.
const DefaultRewardPeriodSeconds = 86_400

// Vault is a single-token staking vault. Principal is pulled into vault
// custody through an allowance; rewards accrue per full day at a
// parts-per-100000 daily rate and settle before every principal mutation, so
// a later stake or withdrawal never erases an already earned reward.
type Vault struct {
	mu sync.Mutex

	ledger  *token.Ledger
	auth    nativecommon.Authorizer
	emitter events.Emitter
	clock   func() time.Time
	engine  *rewards.Engine

	address common.Address

	positions   map[common.Address]*rewards.Position
	totalStaked *big.Int

	rewardRate    *big.Int
	rewardPeriod  uint64
	minimumAmount *big.Int
}

// NewVault constructs a vault holding custody at the supplied address on the
// given ledger.
func NewVault(ledger *token.Ledger, address common.Address, auth nativecommon.Authorizer) *Vault {
	v := &Vault{
		ledger:        ledger,
		auth:          auth,
		emitter:       events.NoopEmitter{},
		clock:         time.Now,
		address:       address,
		positions:     make(map[common.Address]*rewards.Position),
		totalStaked:   big.NewInt(0),
		rewardRate:    new(big.Int).Set(DefaultRewardRate),
		rewardPeriod:  DefaultRewardPeriodSeconds,
		minimumAmount: new(big.Int).Set(DefaultMinimumStake),
	}
	v.engine = rewards.NewEngine((*vaultParams)(v), rewards.VaultScale)
	return v
}

// vaultParams adapts the vault into the accrual parameter source without
// locking: the engine only runs while the vault mutex is already held.
type vaultParams Vault

func (p *vaultParams) RewardRate() *big.Int        { return new(big.Int).Set(p.rewardRate) }
func (p *vaultParams) RewardPeriodSeconds() uint64 { return p.rewardPeriod }

// SetEmitter wires the downstream event sink. A nil emitter restores the noop.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// SetClock overrides the time source. Tests install a deterministic clock.
func (v *Vault) SetClock(clock func() time.Time) {
	if v == nil || clock == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = clock
}

// RewardRate returns the daily reward in parts per 100000.
func (v *Vault) RewardRate() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.rewardRate)
}

// RewardPeriodSeconds returns the accrual cooldown.
func (v *Vault) RewardPeriodSeconds() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rewardPeriod
}

// MinimumTransactionAmount returns the stake floor.
func (v *Vault) MinimumTransactionAmount() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.minimumAmount)
}

// TotalStaked returns the aggregate principal held by the vault.
func (v *Vault) TotalStaked() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.totalStaked)
}

// StakedBalance returns the staker's current principal.
func (v *Vault) StakedBalance(staker common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, ok := v.positions[staker]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(pos.Amount)
}

func (v *Vault) now() uint64 {
	ts := v.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Stake pulls the amount into vault custody. Any reward already accrued is
// settled and paid first; the accrual checkpoint then resets to now. Every
// transfer leg is validated before the first token moves, so a failure never
// strands principal in custody or erases an accrued reward.
func (v *Vault) Stake(staker common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount == nil || amount.Cmp(v.minimumAmount) < 0 {
		return ErrAmountTooLow
	}
	now := v.now()

	if err := v.ledger.CanTransferFrom(v.address, staker, v.address, amount); err != nil {
		return err
	}
	pos, existing := v.positions[staker]
	reward := big.NewInt(0)
	if existing {
		var err error
		reward, err = v.engine.Pending(pos.Clone(), v.totalStaked, now)
		if err != nil {
			return err
		}
		if reward.Sign() > 0 {
			if err := v.ledger.CanTransfer(v.address, staker, reward); err != nil {
				return err
			}
		}
	}

	if err := v.ledger.TransferFrom(v.address, staker, v.address, amount); err != nil {
		return err
	}
	if err := v.payRewardLocked(staker, reward); err != nil {
		return unwind(err, func() error {
			return v.ledger.Transfer(v.address, staker, amount)
		})
	}

	if !existing {
		pos = &rewards.Position{Amount: big.NewInt(0)}
		v.positions[staker] = pos
	}
	pos.Amount.Add(pos.Amount, amount)
	pos.LastTimestamp = now
	v.totalStaked.Add(v.totalStaked, amount)

	v.emitter.Emit(events.Staked{Staker: staker, Amount: new(big.Int).Set(amount)})
	return nil
}

// Withdraw settles any accrued reward, then returns principal to the staker.
func (v *Vault) Withdraw(staker common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountTooLow
	}
	pos, ok := v.positions[staker]
	if !ok || pos.Amount.Cmp(amount) < 0 {
		return token.ErrInsufficientBalance
	}
	now := v.now()

	reward, err := v.engine.Pending(pos.Clone(), v.totalStaked, now)
	if err != nil {
		return err
	}
	// Principal and reward both leave custody; validate the combined payout
	// before the first token moves.
	totalOut := new(big.Int).Add(amount, reward)
	if err := v.ledger.CanTransfer(v.address, staker, totalOut); err != nil {
		return err
	}

	if err := v.ledger.Transfer(v.address, staker, amount); err != nil {
		return err
	}
	if err := v.payRewardLocked(staker, reward); err != nil {
		return unwind(err, func() error {
			return v.ledger.Transfer(staker, v.address, amount)
		})
	}

	if reward.Sign() > 0 {
		pos.LastTimestamp = now
	}
	pos.Amount.Sub(pos.Amount, amount)
	if pos.Amount.Sign() == 0 {
		delete(v.positions, staker)
	}
	v.totalStaked.Sub(v.totalStaked, amount)

	v.emitter.Emit(events.Withdrawn{Staker: staker, Amount: new(big.Int).Set(amount)})
	return nil
}

// ViewPendingReward reports the reward accrued so far. A staker with no
// position has nothing pending, regardless of vault state.
func (v *Vault) ViewPendingReward(staker common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, ok := v.positions[staker]
	if !ok {
		return big.NewInt(0), nil
	}
	return v.engine.Pending(pos.Clone(), v.totalStaked, v.now())
}

// ClaimReward pays out the staker's accrued reward. Claiming before the
// cooldown elapses or with nothing accrued is an error. The checkpoint only
// advances after the payment lands, so a failed payout leaves the accrued
// reward claimable.
func (v *Vault) ClaimReward(staker common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	pos, ok := v.positions[staker]
	var accrued *rewards.Position
	if ok {
		a := pos.Clone()
		accrued = &a
	}
	reward, err := v.engine.Claim(accrued, v.totalStaked, now)
	if err != nil {
		return nil, err
	}
	if err := v.payRewardLocked(staker, reward); err != nil {
		return nil, err
	}
	pos.LastTimestamp = now
	v.emitter.Emit(events.StakeRewardClaimed{
		Staker: staker,
		Amount: new(big.Int).Set(reward),
	})
	return reward, nil
}

// UpdateRewardRate sets the daily reward in parts per 100000.
func (v *Vault) UpdateRewardRate(caller common.Address, rate *big.Int) error {
	if !v.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if rate == nil || rate.Sign() <= 0 {
		return ErrZeroRewardRate
	}
	v.mu.Lock()
	v.rewardRate = new(big.Int).Set(rate)
	emitter := v.emitter
	v.mu.Unlock()
	emitter.Emit(events.StakeRewardRateUpdated{Rate: new(big.Int).Set(rate)})
	return nil
}

// UpdateMinTransactionAmount sets the stake floor. The amount is given in
// whole tokens and scaled to fixed point internally; the emitted value stays
// in whole tokens.
func (v *Vault) UpdateMinTransactionAmount(caller common.Address, amount *big.Int) error {
	if !v.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountTooLow
	}
	v.mu.Lock()
	v.minimumAmount = new(big.Int).Mul(amount, token.Unit)
	emitter := v.emitter
	v.mu.Unlock()
	emitter.Emit(events.MinimumTransactionAmountUpdated{Amount: new(big.Int).Set(amount)})
	return nil
}

// payRewardLocked moves a settled reward from vault custody to the staker.
// Caller holds v.mu.
func (v *Vault) payRewardLocked(to common.Address, reward *big.Int) error {
	if reward == nil || reward.Sign() == 0 {
		return nil
	}
	return v.ledger.Transfer(v.address, to, reward)
}

// unwind returns an already-executed transfer leg after a later leg fails.
// The window only opens when the ledger changes underneath a validated
// operation, so a failing compensation is surfaced alongside the original
// error.
func unwind(err error, refund func() error) error {
	if refundErr := refund(); refundErr != nil {
		return errors.Join(err, refundErr)
	}
	return err
}

package liquidity

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nuchain/core/events"
	nativecommon "nuchain/native/common"
	"nuchain/native/token"
)

// Factory defaults applied to every pool until an admin overrides them.
const (
	DefaultTradingFeeBps       = 300
	DefaultRewardPeriodSeconds = 86_400
	MaxTradingFeeBps           = 1000
	secondsPerDay              = 86_400
)

// DefaultRewardRate is the per-period liquidity reward rate.
var DefaultRewardRate = big.NewInt(1_000_000_000_000_000)

// Stable error identifiers for factory operations.
var (
	ErrPoolExists       = errors.New("Pool already exists")
	ErrPoolNotFound     = errors.New("Pool does not exist")
	ErrZeroRewardRate   = errors.New("Reward Rate cannot be equal to zero")
	ErrZeroRewardPeriod = errors.New("Reward Period can not be equal to zero")
	ErrTradingFeeHigh   = errors.New("Fee too high")
)

// Factory registers liquidity pools and owns the parameters they all share:
// the trading fee, the reward rate and the reward period. Pools read those
// parameters live through the factory, so an admin update takes effect on the
// next pool operation without touching pool state. The factory also carries
// the pause flag every pool entry point consults.
type Factory struct {
	mu sync.RWMutex

	auth    nativecommon.Authorizer
	emitter events.Emitter
	clock   func() time.Time

	usdn  *token.Ledger
	pools map[common.Address]*Pool

	paused        bool
	tradingFeeBps uint64
	rewardRate    *big.Int
	rewardPeriod  uint64
}

// NewFactory constructs a factory over the shared pool token ledger.
func NewFactory(usdn *token.Ledger, auth nativecommon.Authorizer) *Factory {
	return &Factory{
		auth:          auth,
		emitter:       events.NoopEmitter{},
		clock:         time.Now,
		usdn:          usdn,
		pools:         make(map[common.Address]*Pool),
		tradingFeeBps: DefaultTradingFeeBps,
		rewardRate:    new(big.Int).Set(DefaultRewardRate),
		rewardPeriod:  DefaultRewardPeriodSeconds,
	}
}

// SetEmitter wires the downstream event sink. A nil emitter restores the noop.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// SetClock overrides the time source. Tests install a deterministic clock.
func (f *Factory) SetClock(clock func() time.Time) {
	if f == nil || clock == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = clock
}

func (f *Factory) now() uint64 {
	f.mu.RLock()
	clock := f.clock
	f.mu.RUnlock()
	ts := clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// CreatePool registers a pool pairing the shared token with the supplied
// stablecoin ledger. At most one pool exists per stablecoin.
func (f *Factory) CreatePool(caller, poolAddr common.Address, stable *token.Ledger) (*Pool, error) {
	if !f.auth.Allow(caller, nativecommon.CapAdmin) {
		return nil, nativecommon.ErrNotAuthorized
	}
	if stable == nil {
		return nil, ErrPoolNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := stable.Address()
	if _, exists := f.pools[key]; exists {
		return nil, ErrPoolExists
	}
	pool := newPool(f, poolAddr, f.usdn, stable)
	f.pools[key] = pool
	f.emitter.Emit(events.PoolCreated{
		Pool:       poolAddr,
		USDN:       f.usdn.Address(),
		Stablecoin: key,
	})
	return pool, nil
}

// Pool resolves the pool registered for the given stablecoin address.
func (f *Factory) Pool(stablecoin common.Address) (*Pool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pool, ok := f.pools[stablecoin]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// Pools returns every registered pool.
func (f *Factory) Pools() []*Pool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Pool, 0, len(f.pools))
	for _, pool := range f.pools {
		out = append(out, pool)
	}
	return out
}

// IsPaused implements the pause view consulted by every pool entry point.
func (f *Factory) IsPaused() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.paused
}

// PausePools halts every pool governed by this factory.
func (f *Factory) PausePools(caller common.Address) error {
	if !f.auth.Allow(caller, nativecommon.CapPauser) {
		return nativecommon.ErrNotAuthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return token.ErrAlreadyPaused
	}
	f.paused = true
	return nil
}

// UnpausePools resumes pool operation.
func (f *Factory) UnpausePools(caller common.Address) error {
	if !f.auth.Allow(caller, nativecommon.CapPauser) {
		return nativecommon.ErrNotAuthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused {
		return token.ErrNotPaused
	}
	f.paused = false
	return nil
}

// TradingFeeBps returns the swap fee applied by every pool.
func (f *Factory) TradingFeeBps() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tradingFeeBps
}

// RewardRate implements the accrual parameter source.
func (f *Factory) RewardRate() *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return new(big.Int).Set(f.rewardRate)
}

// RewardPeriodSeconds implements the accrual parameter source.
func (f *Factory) RewardPeriodSeconds() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rewardPeriod
}

// UpdateTradingFee sets the swap fee in basis points, capped at
// MaxTradingFeeBps.
func (f *Factory) UpdateTradingFee(caller common.Address, bps uint64) error {
	if !f.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if bps > MaxTradingFeeBps {
		return ErrTradingFeeHigh
	}
	f.mu.Lock()
	f.tradingFeeBps = bps
	emitter := f.emitter
	f.mu.Unlock()
	emitter.Emit(events.TradingFeeUpdated{FeeBps: bps})
	return nil
}

// UpdateRewardRate sets the per-period liquidity reward rate.
func (f *Factory) UpdateRewardRate(caller common.Address, rate *big.Int) error {
	if !f.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if rate == nil || rate.Sign() <= 0 {
		return ErrZeroRewardRate
	}
	f.mu.Lock()
	f.rewardRate = new(big.Int).Set(rate)
	emitter := f.emitter
	f.mu.Unlock()
	emitter.Emit(events.RewardRateUpdated{Rate: new(big.Int).Set(rate)})
	return nil
}

// UpdateRewardPeriod sets the accrual cooldown, expressed in whole days.
func (f *Factory) UpdateRewardPeriod(caller common.Address, days uint64) error {
	if !f.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if days == 0 {
		return ErrZeroRewardPeriod
	}
	seconds := days * secondsPerDay
	f.mu.Lock()
	f.rewardPeriod = seconds
	emitter := f.emitter
	f.mu.Unlock()
	emitter.Emit(events.RewardPeriodUpdated{PeriodSeconds: seconds})
	return nil
}

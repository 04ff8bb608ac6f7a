package liquidity

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"nuchain/core/events"
	nativecommon "nuchain/native/common"
	"nuchain/native/rewards"
	"nuchain/native/token"
)

// ErrInvalidTokenPair rejects swaps and withdrawals naming a token the pool
// does not hold.
var ErrInvalidTokenPair = errors.New("Invalid token pair")

func insufficientLiquidity(symbol string) error {
	return fmt.Errorf("Insufficient Liquidity for %s", symbol)
}

// Position is a provider's share of the pool: both deposit sides plus the
// reward checkpoint. Removals are bounded per side against it, so one
// provider can never withdraw another provider's deposit.
type Position struct {
	AmountUSDN       *big.Int
	AmountStablecoin *big.Int
	LastTimestamp    uint64
}

func (pos Position) clone() Position {
	return Position{
		AmountUSDN:       new(big.Int).Set(pos.AmountUSDN),
		AmountStablecoin: new(big.Int).Set(pos.AmountStablecoin),
		LastTimestamp:    pos.LastTimestamp,
	}
}

// accrual projects the shared-token side into the reward engine's state.
func (pos Position) accrual() rewards.Position {
	return rewards.Position{
		Amount:        new(big.Int).Set(pos.AmountUSDN),
		LastTimestamp: pos.LastTimestamp,
	}
}

// Pool pairs the shared token with one stablecoin at a fixed 1:1 peg. Swaps
// exchange one side for the other minus the factory trading fee; there is no
// price curve. Liquidity rewards accrue on the shared-token side of each
// provider's position and are paid from the pool's shared-token reserve.
//
// The pool holds custody at its own address on both ledgers and pulls
// deposits through allowances, so providers approve the pool before adding
// liquidity. Every multi-leg operation validates all of its transfer legs
// before moving the first token, and unwinds already-executed legs if a
// later one still fails, so a failure never strands funds in pool custody.
type Pool struct {
	mu sync.Mutex

	factory *Factory
	address common.Address
	usdn    *token.Ledger
	stable  *token.Ledger
	engine  *rewards.Engine
	emitter events.Emitter

	reserveUSDN   *big.Int
	reserveStable *big.Int

	positions      map[common.Address]*Position
	totalLiquidity *big.Int
}

func newPool(factory *Factory, address common.Address, usdn, stable *token.Ledger) *Pool {
	return &Pool{
		factory:        factory,
		address:        address,
		usdn:           usdn,
		stable:         stable,
		engine:         rewards.NewEngine(factory, rewards.PoolScale),
		emitter:        factory.emitter,
		reserveUSDN:    big.NewInt(0),
		reserveStable:  big.NewInt(0),
		positions:      make(map[common.Address]*Position),
		totalLiquidity: big.NewInt(0),
	}
}

// Address returns the pool's custody address.
func (p *Pool) Address() common.Address { return p.address }

// StablecoinAddress returns the paired stablecoin's ledger address.
func (p *Pool) StablecoinAddress() common.Address { return p.stable.Address() }

// Reserves returns the pool's current holdings on both sides.
func (p *Pool) Reserves() (usdn, stable *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reserveUSDN), new(big.Int).Set(p.reserveStable)
}

// TotalLiquidity returns the aggregate shared-token principal across all
// providers.
func (p *Pool) TotalLiquidity() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.totalLiquidity)
}

// PositionOf returns a copy of the provider's position.
func (p *Pool) PositionOf(provider common.Address) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[provider]
	if !ok {
		return Position{AmountUSDN: big.NewInt(0), AmountStablecoin: big.NewInt(0)}, false
	}
	return pos.clone(), true
}

// AddLiquidity pulls both amounts from the provider into pool custody. Any
// reward already accrued on an existing position is settled and paid before
// the principal changes, then the accrual checkpoint resets to now.
func (p *Pool) AddLiquidity(provider common.Address, amountUSDN, amountStable *big.Int) error {
	if err := nativecommon.Guard(p.factory); err != nil {
		return err
	}
	if !positive(amountUSDN) || !positive(amountStable) {
		return token.ErrInvalidAmount
	}
	now := p.factory.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Validate every leg before the first token moves.
	if err := p.usdn.CanTransferFrom(p.address, provider, p.address, amountUSDN); err != nil {
		return err
	}
	if err := p.stable.CanTransferFrom(p.address, provider, p.address, amountStable); err != nil {
		return err
	}

	pos, existing := p.positions[provider]
	reward := big.NewInt(0)
	if existing && p.totalLiquidity.Sign() > 0 {
		var err error
		reward, err = p.engine.Pending(pos.accrual(), p.totalLiquidity, now)
		if err != nil {
			return err
		}
		if err := p.checkRewardPayable(provider, reward); err != nil {
			return err
		}
	}

	if err := p.usdn.TransferFrom(p.address, provider, p.address, amountUSDN); err != nil {
		return err
	}
	if err := p.stable.TransferFrom(p.address, provider, p.address, amountStable); err != nil {
		return unwind(err, func() error {
			return p.usdn.Transfer(p.address, provider, amountUSDN)
		})
	}
	if err := p.payRewardLocked(provider, reward); err != nil {
		return unwind(err, func() error {
			if err := p.usdn.Transfer(p.address, provider, amountUSDN); err != nil {
				return err
			}
			return p.stable.Transfer(p.address, provider, amountStable)
		})
	}

	if !existing {
		pos = &Position{AmountUSDN: big.NewInt(0), AmountStablecoin: big.NewInt(0)}
		p.positions[provider] = pos
	}
	pos.AmountUSDN.Add(pos.AmountUSDN, amountUSDN)
	pos.AmountStablecoin.Add(pos.AmountStablecoin, amountStable)
	pos.LastTimestamp = now
	p.totalLiquidity.Add(p.totalLiquidity, amountUSDN)
	p.reserveUSDN.Add(p.reserveUSDN, amountUSDN)
	p.reserveStable.Add(p.reserveStable, amountStable)

	p.emitter.Emit(events.LiquidityAdded{
		Provider:         provider,
		AmountUSDN:       new(big.Int).Set(amountUSDN),
		AmountStablecoin: new(big.Int).Set(amountStable),
	})
	return nil
}

// RemoveLiquidity settles any accrued reward, then returns the requested
// amounts from pool custody to the provider. Each amount is bounded by the
// matching side of the provider's own position as well as the pool reserves.
func (p *Pool) RemoveLiquidity(provider common.Address, amountUSDN, amountStable *big.Int) error {
	if err := nativecommon.Guard(p.factory); err != nil {
		return err
	}
	if !positive(amountUSDN) || !positive(amountStable) {
		return token.ErrInvalidAmount
	}
	now := p.factory.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[provider]
	if !ok || pos.AmountUSDN.Cmp(amountUSDN) < 0 || pos.AmountStablecoin.Cmp(amountStable) < 0 {
		return token.ErrInsufficientBalance
	}
	if p.reserveUSDN.Cmp(amountUSDN) < 0 {
		return insufficientLiquidity(p.usdn.Symbol())
	}
	if p.reserveStable.Cmp(amountStable) < 0 {
		return insufficientLiquidity(p.stable.Symbol())
	}

	reward, err := p.engine.Pending(pos.accrual(), p.totalLiquidity, now)
	if err != nil {
		return err
	}

	// Validate both payout legs and the reward payment before the first
	// token moves. Reward and principal both draw on the shared-token side.
	totalUSDNOut := new(big.Int).Add(amountUSDN, reward)
	if p.reserveUSDN.Cmp(totalUSDNOut) < 0 {
		return insufficientLiquidity(p.usdn.Symbol())
	}
	if err := p.usdn.CanTransfer(p.address, provider, totalUSDNOut); err != nil {
		return err
	}
	if err := p.stable.CanTransfer(p.address, provider, amountStable); err != nil {
		return err
	}

	if err := p.usdn.Transfer(p.address, provider, amountUSDN); err != nil {
		return err
	}
	if err := p.stable.Transfer(p.address, provider, amountStable); err != nil {
		return unwind(err, func() error {
			return p.usdn.Transfer(provider, p.address, amountUSDN)
		})
	}
	if err := p.payRewardLocked(provider, reward); err != nil {
		return unwind(err, func() error {
			if err := p.usdn.Transfer(provider, p.address, amountUSDN); err != nil {
				return err
			}
			return p.stable.Transfer(provider, p.address, amountStable)
		})
	}

	if reward.Sign() > 0 {
		pos.LastTimestamp = now
	}
	pos.AmountUSDN.Sub(pos.AmountUSDN, amountUSDN)
	pos.AmountStablecoin.Sub(pos.AmountStablecoin, amountStable)
	if pos.AmountUSDN.Sign() == 0 && pos.AmountStablecoin.Sign() == 0 {
		delete(p.positions, provider)
	}
	p.totalLiquidity.Sub(p.totalLiquidity, amountUSDN)
	p.reserveUSDN.Sub(p.reserveUSDN, amountUSDN)
	p.reserveStable.Sub(p.reserveStable, amountStable)

	p.emitter.Emit(events.LiquidityRemoved{
		Provider:         provider,
		AmountUSDN:       new(big.Int).Set(amountUSDN),
		AmountStablecoin: new(big.Int).Set(amountStable),
	})
	return nil
}

// Swap exchanges amountIn of tokenIn for tokenOut at the 1:1 peg minus the
// factory trading fee. The pair must name both of the pool's tokens, one per
// side; the fee remains in the pool's incoming reserve.
func (p *Pool) Swap(trader, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(p.factory); err != nil {
		return nil, err
	}
	if !positive(amountIn) {
		return nil, token.ErrInvalidAmount
	}

	var in, out *token.Ledger
	switch {
	case tokenIn == p.usdn.Address() && tokenOut == p.stable.Address():
		in, out = p.usdn, p.stable
	case tokenIn == p.stable.Address() && tokenOut == p.usdn.Address():
		in, out = p.stable, p.usdn
	default:
		return nil, ErrInvalidTokenPair
	}

	fee := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(p.factory.TradingFeeBps()))
	fee.Quo(fee, big.NewInt(10_000))
	amountOut := new(big.Int).Sub(amountIn, fee)

	p.mu.Lock()
	defer p.mu.Unlock()

	reserveIn, reserveOut := p.reserveUSDN, p.reserveStable
	if out == p.usdn {
		reserveIn, reserveOut = p.reserveStable, p.reserveUSDN
	}
	if reserveOut.Cmp(amountOut) < 0 {
		return nil, insufficientLiquidity(out.Symbol())
	}
	if err := in.CanTransferFrom(p.address, trader, p.address, amountIn); err != nil {
		return nil, err
	}
	if err := out.CanTransfer(p.address, trader, amountOut); err != nil {
		return nil, err
	}

	if err := in.TransferFrom(p.address, trader, p.address, amountIn); err != nil {
		return nil, err
	}
	if err := out.Transfer(p.address, trader, amountOut); err != nil {
		return nil, unwind(err, func() error {
			return in.Transfer(p.address, trader, amountIn)
		})
	}
	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, amountOut)

	p.emitter.Emit(events.Swapped{
		Trader:    trader,
		TokenIn:   in.Address(),
		TokenOut:  out.Address(),
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(amountOut),
	})
	return amountOut, nil
}

// CalculateReward reports the reward currently accrued to the provider
// without mutating any state.
func (p *Pool) CalculateReward(provider common.Address) (*big.Int, error) {
	now := p.factory.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[provider]
	if !ok {
		return p.engine.Pending(rewards.Position{Amount: big.NewInt(0)}, p.totalLiquidity, now)
	}
	return p.engine.Pending(pos.accrual(), p.totalLiquidity, now)
}

// ClaimReward pays out the provider's accrued reward in the shared token.
// Claiming before the cooldown elapses or with nothing accrued is an error.
// The checkpoint only advances after the payment lands, so a failed payout
// leaves the accrued reward claimable.
func (p *Pool) ClaimReward(provider common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(p.factory); err != nil {
		return nil, err
	}
	now := p.factory.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[provider]
	var accrued *rewards.Position
	if ok {
		a := pos.accrual()
		accrued = &a
	}
	reward, err := p.engine.Claim(accrued, p.totalLiquidity, now)
	if err != nil {
		return nil, err
	}
	if err := p.payRewardLocked(provider, reward); err != nil {
		return nil, err
	}
	pos.LastTimestamp = now
	p.emitter.Emit(events.RewardClaimed{
		Principal: provider,
		Amount:    new(big.Int).Set(reward),
	})
	return reward, nil
}

// RebalancePeg tops up one side's reserve from the caller's balance. It moves
// reserves without touching provider positions, so it deliberately skews the
// reserve ratio back toward the peg.
func (p *Pool) RebalancePeg(caller common.Address, amount *big.Int, usdnSide bool) error {
	if !p.factory.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if !positive(amount) {
		return token.ErrInvalidAmount
	}
	side := p.stable
	if usdnSide {
		side = p.usdn
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := side.TransferFrom(p.address, caller, p.address, amount); err != nil {
		return err
	}
	if usdnSide {
		p.reserveUSDN.Add(p.reserveUSDN, amount)
	} else {
		p.reserveStable.Add(p.reserveStable, amount)
	}
	p.emitter.Emit(events.PegRebalanced{
		Amount:   new(big.Int).Set(amount),
		USDNSide: usdnSide,
	})
	return nil
}

// WithdrawToken is the admin escape hatch: it moves pool-held tokens out of
// custody without adjusting provider positions.
func (p *Pool) WithdrawToken(caller, tokenAddr, to common.Address, amount *big.Int) error {
	if !p.factory.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if !positive(amount) {
		return token.ErrInvalidAmount
	}

	var ledger *token.Ledger
	var reserve **big.Int

	p.mu.Lock()
	defer p.mu.Unlock()

	switch tokenAddr {
	case p.usdn.Address():
		ledger, reserve = p.usdn, &p.reserveUSDN
	case p.stable.Address():
		ledger, reserve = p.stable, &p.reserveStable
	default:
		return ErrInvalidTokenPair
	}
	if (*reserve).Cmp(amount) < 0 {
		return insufficientLiquidity(ledger.Symbol())
	}
	if err := ledger.Transfer(p.address, to, amount); err != nil {
		return err
	}
	(*reserve).Sub(*reserve, amount)
	p.emitter.Emit(events.TokenWithdrawn{
		To:     to,
		Token:  tokenAddr,
		Amount: new(big.Int).Set(amount),
	})
	return nil
}

// checkRewardPayable validates a reward payment without executing it.
// Caller holds p.mu.
func (p *Pool) checkRewardPayable(to common.Address, reward *big.Int) error {
	if reward == nil || reward.Sign() == 0 {
		return nil
	}
	if p.reserveUSDN.Cmp(reward) < 0 {
		return insufficientLiquidity(p.usdn.Symbol())
	}
	return p.usdn.CanTransfer(p.address, to, reward)
}

// payRewardLocked moves a settled reward from the shared-token reserve to the
// recipient. Caller holds p.mu.
func (p *Pool) payRewardLocked(to common.Address, reward *big.Int) error {
	if reward == nil || reward.Sign() == 0 {
		return nil
	}
	if p.reserveUSDN.Cmp(reward) < 0 {
		return insufficientLiquidity(p.usdn.Symbol())
	}
	if err := p.usdn.Transfer(p.address, to, reward); err != nil {
		return err
	}
	p.reserveUSDN.Sub(p.reserveUSDN, reward)
	return nil
}

// unwind returns already-executed transfer legs after a later leg fails. The
// window only opens when a ledger changes underneath a validated operation,
// so a failing compensation is surfaced alongside the original error.
func unwind(err error, refund func() error) error {
	if refundErr := refund(); refundErr != nil {
		return errors.Join(err, refundErr)
	}
	return err
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

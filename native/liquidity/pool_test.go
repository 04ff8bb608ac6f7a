package liquidity

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "nuchain/native/common"
	"nuchain/native/rewards"
	"nuchain/native/token"
)

var (
	admin      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	provider   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	trader     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	outsider   = common.HexToAddress("0x0000000000000000000000000000000000000004")
	usdnAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	stableAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), token.Unit)
}

// milli returns n thousandths of a whole token.
func milli(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
}

type fixture struct {
	factory *Factory
	pool    *Pool
	usdn    *token.Ledger
	stable  *token.Ledger
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	usdn := token.NewLedger("NuChain Stablecoin", "USDN", usdnAddr)
	stable := token.NewLedger("Partner Stablecoin", "PUSD", stableAddr)

	for _, addr := range []common.Address{provider, trader, admin} {
		if err := usdn.Credit(addr, tokens(1000)); err != nil {
			t.Fatalf("seed usdn: %v", err)
		}
		if err := stable.Credit(addr, tokens(1000)); err != nil {
			t.Fatalf("seed stable: %v", err)
		}
		if err := usdn.Approve(addr, poolAddr, tokens(1000)); err != nil {
			t.Fatalf("approve usdn: %v", err)
		}
		if err := stable.Approve(addr, poolAddr, tokens(1000)); err != nil {
			t.Fatalf("approve stable: %v", err)
		}
	}

	f := &fixture{usdn: usdn, stable: stable, now: 1_700_000_000}
	f.factory = NewFactory(usdn, nativecommon.NewRoleSet(admin))
	f.factory.SetClock(func() time.Time { return time.Unix(f.now, 0) })

	pool, err := f.factory.CreatePool(admin, poolAddr, stable)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f.pool = pool
	return f
}

func (f *fixture) advance(seconds int64) { f.now += seconds }

func TestCreatePoolOncePerStablecoin(t *testing.T) {
	f := newFixture(t)

	if _, err := f.factory.CreatePool(admin, poolAddr, f.stable); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}
	if _, err := f.factory.CreatePool(outsider, poolAddr, f.stable); !errors.Is(err, nativecommon.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := f.factory.Pool(stableAddr); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := f.factory.Pool(usdnAddr); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestAddRemoveLiquidity(t *testing.T) {
	f := newFixture(t)

	if err := f.pool.AddLiquidity(provider, big.NewInt(0), tokens(1)); !errors.Is(err, token.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := f.pool.AddLiquidity(provider, tokens(100), tokens(100)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	usdnReserve, stableReserve := f.pool.Reserves()
	if usdnReserve.Cmp(tokens(100)) != 0 || stableReserve.Cmp(tokens(100)) != 0 {
		t.Fatalf("unexpected reserves: %s / %s", usdnReserve, stableReserve)
	}
	if got := f.usdn.BalanceOf(provider); got.Cmp(tokens(900)) != 0 {
		t.Fatalf("deposit not pulled: %s", got)
	}

	if err := f.pool.RemoveLiquidity(provider, tokens(200), tokens(10)); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance over position, got %v", err)
	}
	if err := f.pool.RemoveLiquidity(provider, tokens(40), tokens(40)); err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	if got := f.pool.TotalLiquidity(); got.Cmp(tokens(60)) != 0 {
		t.Fatalf("unexpected total liquidity: %s", got)
	}
	if got := f.usdn.BalanceOf(provider); got.Cmp(tokens(940)) != 0 {
		t.Fatalf("withdrawal not returned: %s", got)
	}
}

func TestSwapAppliesTradingFee(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(100), tokens(100)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	// 10 in at 300 bps pays 9.7 out.
	out, err := f.pool.Swap(trader, usdnAddr, stableAddr, tokens(10))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	want := milli(9700)
	if out.Cmp(want) != 0 {
		t.Fatalf("expected %s out, got %s", want, out)
	}
	if got := f.stable.BalanceOf(trader); got.Cmp(new(big.Int).Add(tokens(1000), want)) != 0 {
		t.Fatalf("output not delivered: %s", got)
	}

	usdnReserve, stableReserve := f.pool.Reserves()
	if usdnReserve.Cmp(tokens(110)) != 0 {
		t.Fatalf("input reserve wrong: %s", usdnReserve)
	}
	if stableReserve.Cmp(new(big.Int).Sub(tokens(100), want)) != 0 {
		t.Fatalf("output reserve wrong: %s", stableReserve)
	}
}

func TestSwapRejectsUnknownTokenAndThinReserves(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(5), tokens(5)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if _, err := f.pool.Swap(trader, outsider, stableAddr, tokens(1)); !errors.Is(err, ErrInvalidTokenPair) {
		t.Fatalf("expected ErrInvalidTokenPair, got %v", err)
	}
	if _, err := f.pool.Swap(trader, usdnAddr, outsider, tokens(1)); !errors.Is(err, ErrInvalidTokenPair) {
		t.Fatalf("expected ErrInvalidTokenPair for unknown output, got %v", err)
	}
	if _, err := f.pool.Swap(trader, stableAddr, stableAddr, tokens(1)); !errors.Is(err, ErrInvalidTokenPair) {
		t.Fatalf("expected ErrInvalidTokenPair for same-token swap, got %v", err)
	}

	_, err := f.pool.Swap(trader, usdnAddr, stableAddr, tokens(50))
	if err == nil || err.Error() != "Insufficient Liquidity for PUSD" {
		t.Fatalf("expected output-side liquidity failure, got %v", err)
	}
}

func TestLiquidityRewardAccrual(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(10), tokens(10)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if _, err := f.pool.ClaimReward(provider); !errors.Is(err, rewards.ErrCooldownNotMet) {
		t.Fatalf("expected cooldown failure, got %v", err)
	}

	f.advance(86_400)
	pending, err := f.pool.CalculateReward(provider)
	if err != nil {
		t.Fatalf("calculate reward: %v", err)
	}
	// 10 tokens at the default 1e15 rate pay 0.001 per period.
	if pending.Cmp(milli(1)) != 0 {
		t.Fatalf("expected %s pending, got %s", milli(1), pending)
	}

	before := f.usdn.BalanceOf(provider)
	reward, err := f.pool.ClaimReward(provider)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if reward.Cmp(milli(1)) != 0 {
		t.Fatalf("unexpected reward: %s", reward)
	}
	if got := f.usdn.BalanceOf(provider); got.Cmp(new(big.Int).Add(before, reward)) != 0 {
		t.Fatalf("reward not paid out: %s", got)
	}

	if _, err := f.pool.ClaimReward(provider); !errors.Is(err, rewards.ErrCooldownNotMet) {
		t.Fatalf("expected cooldown failure after claim, got %v", err)
	}
}

func TestAddLiquiditySettlesBeforeMutation(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(10), tokens(10)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	f.advance(86_400)

	before := f.usdn.BalanceOf(provider)
	if err := f.pool.AddLiquidity(provider, tokens(10), tokens(10)); err != nil {
		t.Fatalf("second add: %v", err)
	}
	// The deposit pulls 10 but the settled reward on the original 10 comes
	// back, so the delta is 10 minus 0.001.
	wantDelta := new(big.Int).Sub(tokens(10), milli(1))
	got := new(big.Int).Sub(before, f.usdn.BalanceOf(provider))
	if got.Cmp(wantDelta) != 0 {
		t.Fatalf("accrued reward lost on principal mutation: delta %s", got)
	}
}

func TestPauseHaltsPools(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(10), tokens(10)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if err := f.factory.PausePools(outsider); !errors.Is(err, nativecommon.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := f.factory.PausePools(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.pool.AddLiquidity(provider, tokens(1), tokens(1)); !errors.Is(err, nativecommon.ErrPoolsPaused) {
		t.Fatalf("expected ErrPoolsPaused, got %v", err)
	}
	if _, err := f.pool.Swap(trader, usdnAddr, stableAddr, tokens(1)); !errors.Is(err, nativecommon.ErrPoolsPaused) {
		t.Fatalf("expected ErrPoolsPaused on swap, got %v", err)
	}
	if err := f.factory.UnpausePools(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := f.pool.AddLiquidity(provider, tokens(1), tokens(1)); err != nil {
		t.Fatalf("add after unpause: %v", err)
	}
}

func TestFactoryParameterUpdates(t *testing.T) {
	f := newFixture(t)

	if err := f.factory.UpdateTradingFee(admin, MaxTradingFeeBps+1); !errors.Is(err, ErrTradingFeeHigh) {
		t.Fatalf("expected ErrTradingFeeHigh, got %v", err)
	}
	if err := f.factory.UpdateRewardRate(admin, big.NewInt(0)); !errors.Is(err, ErrZeroRewardRate) {
		t.Fatalf("expected ErrZeroRewardRate, got %v", err)
	}
	if err := f.factory.UpdateRewardPeriod(admin, 0); !errors.Is(err, ErrZeroRewardPeriod) {
		t.Fatalf("expected ErrZeroRewardPeriod, got %v", err)
	}

	if err := f.factory.UpdateTradingFee(admin, 50); err != nil {
		t.Fatalf("update fee: %v", err)
	}
	if err := f.factory.UpdateRewardPeriod(admin, 2); err != nil {
		t.Fatalf("update period: %v", err)
	}
	if got := f.factory.RewardPeriodSeconds(); got != 2*86_400 {
		t.Fatalf("days not converted to seconds: %d", got)
	}

	// Pools read the live fee: 10 in at 50 bps pays 9.95 out.
	if err := f.pool.AddLiquidity(provider, tokens(100), tokens(100)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	out, err := f.pool.Swap(trader, usdnAddr, stableAddr, tokens(10))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(milli(9950)) != 0 {
		t.Fatalf("expected %s out at 50 bps, got %s", milli(9950), out)
	}
}

func TestAddLiquidityAtomicWithoutStablecoinAllowance(t *testing.T) {
	f := newFixture(t)

	// Outsider holds both tokens but only approved the shared-token side.
	if err := f.usdn.Credit(outsider, tokens(100)); err != nil {
		t.Fatalf("seed usdn: %v", err)
	}
	if err := f.stable.Credit(outsider, tokens(100)); err != nil {
		t.Fatalf("seed stable: %v", err)
	}
	if err := f.usdn.Approve(outsider, poolAddr, tokens(100)); err != nil {
		t.Fatalf("approve usdn: %v", err)
	}

	if err := f.pool.AddLiquidity(outsider, tokens(50), tokens(50)); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if got := f.usdn.BalanceOf(outsider); got.Cmp(tokens(100)) != 0 {
		t.Fatalf("failed add kept the shared-token deposit: %s", got)
	}
	if _, ok := f.pool.PositionOf(outsider); ok {
		t.Fatal("failed add left a position behind")
	}
	usdnReserve, stableReserve := f.pool.Reserves()
	if usdnReserve.Sign() != 0 || stableReserve.Sign() != 0 {
		t.Fatalf("failed add moved reserves: %s / %s", usdnReserve, stableReserve)
	}
}

func TestSwapAtomicWhenTraderFrozen(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(100), tokens(100)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := f.usdn.Freeze(trader); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, err := f.pool.Swap(trader, usdnAddr, stableAddr, tokens(10)); !errors.Is(err, token.ErrSenderFrozen) {
		t.Fatalf("expected ErrSenderFrozen, got %v", err)
	}
	usdnReserve, stableReserve := f.pool.Reserves()
	if usdnReserve.Cmp(tokens(100)) != 0 || stableReserve.Cmp(tokens(100)) != 0 {
		t.Fatalf("failed swap moved reserves: %s / %s", usdnReserve, stableReserve)
	}
	if got := f.stable.BalanceOf(trader); got.Cmp(tokens(1000)) != 0 {
		t.Fatalf("failed swap paid the output leg: %s", got)
	}
}

func TestRemoveLiquidityBoundsStablecoinSide(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(100), tokens(100)); err != nil {
		t.Fatalf("provider add: %v", err)
	}
	if err := f.pool.AddLiquidity(trader, tokens(100), tokens(100)); err != nil {
		t.Fatalf("second provider add: %v", err)
	}

	// The pool-wide reserve covers 199 but the position does not.
	if err := f.pool.RemoveLiquidity(trader, tokens(1), tokens(199)); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance over stablecoin side, got %v", err)
	}
	if got := f.stable.BalanceOf(trader); got.Cmp(tokens(900)) != 0 {
		t.Fatalf("bounded removal still paid out: %s", got)
	}

	if err := f.pool.RemoveLiquidity(trader, tokens(100), tokens(100)); err != nil {
		t.Fatalf("full removal of own position: %v", err)
	}
	if got := f.stable.BalanceOf(trader); got.Cmp(tokens(1000)) != 0 {
		t.Fatalf("own deposit not fully returned: %s", got)
	}
	if _, ok := f.pool.PositionOf(trader); ok {
		t.Fatal("emptied position survived")
	}
	if pos, ok := f.pool.PositionOf(provider); !ok || pos.AmountStablecoin.Cmp(tokens(100)) != 0 {
		t.Fatalf("other provider's position disturbed: %+v ok=%v", pos, ok)
	}
}

func TestRebalancePegAndWithdrawToken(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.AddLiquidity(provider, tokens(50), tokens(50)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if err := f.pool.RebalancePeg(outsider, tokens(10), true); !errors.Is(err, nativecommon.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := f.pool.RebalancePeg(admin, tokens(10), true); err != nil {
		t.Fatalf("rebalance: %v", err)
	}
	usdnReserve, _ := f.pool.Reserves()
	if usdnReserve.Cmp(tokens(60)) != 0 {
		t.Fatalf("reserve not topped up: %s", usdnReserve)
	}
	// Positions are untouched by a rebalance.
	if got := f.pool.TotalLiquidity(); got.Cmp(tokens(50)) != 0 {
		t.Fatalf("rebalance moved provider liquidity: %s", got)
	}

	if err := f.pool.WithdrawToken(admin, outsider, admin, tokens(1)); !errors.Is(err, ErrInvalidTokenPair) {
		t.Fatalf("expected ErrInvalidTokenPair, got %v", err)
	}
	if err := f.pool.WithdrawToken(admin, stableAddr, admin, tokens(5)); err != nil {
		t.Fatalf("withdraw token: %v", err)
	}
	_, stableReserve := f.pool.Reserves()
	if stableReserve.Cmp(tokens(45)) != 0 {
		t.Fatalf("withdrawal not debited: %s", stableReserve)
	}
}

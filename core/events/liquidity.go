package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Event type tags emitted by the liquidity factory and its pools.
const (
	TypePoolCreated         = "liquidity.poolCreated"
	TypeLiquidityAdded      = "liquidity.added"
	TypeLiquidityRemoved    = "liquidity.removed"
	TypeSwapped             = "liquidity.swapped"
	TypeRewardClaimed       = "liquidity.rewardClaimed"
	TypePegRebalanced       = "liquidity.pegRebalanced"
	TypeTokenWithdrawn      = "liquidity.tokenWithdrawn"
	TypeTradingFeeUpdated   = "liquidity.tradingFeeUpdated"
	TypeRewardRateUpdated   = "liquidity.rewardRateUpdated"
	TypeRewardPeriodUpdated = "liquidity.rewardPeriodUpdated"
)

// PoolCreated reports a new pool registered by the factory.
type PoolCreated struct {
	Pool       common.Address
	USDN       common.Address
	Stablecoin common.Address
}

func (PoolCreated) EventType() string { return TypePoolCreated }

func (e PoolCreated) Record() *Record {
	return &Record{
		Type: TypePoolCreated,
		Attributes: map[string]string{
			"pool":       e.Pool.Hex(),
			"usdn":       e.USDN.Hex(),
			"stablecoin": e.Stablecoin.Hex(),
		},
	}
}

// LiquidityAdded reports a provider deposit on both sides of the pool.
type LiquidityAdded struct {
	Provider         common.Address
	AmountUSDN       *big.Int
	AmountStablecoin *big.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

func (e LiquidityAdded) Record() *Record {
	return &Record{
		Type: TypeLiquidityAdded,
		Attributes: map[string]string{
			"provider":         e.Provider.Hex(),
			"amountUsdn":       amountString(e.AmountUSDN),
			"amountStablecoin": amountString(e.AmountStablecoin),
		},
	}
}

// LiquidityRemoved reports a provider withdrawal on both sides of the pool.
type LiquidityRemoved struct {
	Provider         common.Address
	AmountUSDN       *big.Int
	AmountStablecoin *big.Int
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

func (e LiquidityRemoved) Record() *Record {
	return &Record{
		Type: TypeLiquidityRemoved,
		Attributes: map[string]string{
			"provider":         e.Provider.Hex(),
			"amountUsdn":       amountString(e.AmountUSDN),
			"amountStablecoin": amountString(e.AmountStablecoin),
		},
	}
}

// Swapped reports a fee-deducted exchange between the pool's two reserves.
type Swapped struct {
	Trader    common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (Swapped) EventType() string { return TypeSwapped }

func (e Swapped) Record() *Record {
	return &Record{
		Type: TypeSwapped,
		Attributes: map[string]string{
			"trader":    e.Trader.Hex(),
			"tokenIn":   e.TokenIn.Hex(),
			"tokenOut":  e.TokenOut.Hex(),
			"amountIn":  amountString(e.AmountIn),
			"amountOut": amountString(e.AmountOut),
		},
	}
}

// RewardClaimed reports an accrued liquidity reward payout.
type RewardClaimed struct {
	Principal common.Address
	Amount    *big.Int
}

func (RewardClaimed) EventType() string { return TypeRewardClaimed }

func (e RewardClaimed) Record() *Record {
	return &Record{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"principal": e.Principal.Hex(),
			"amount":    amountString(e.Amount),
		},
	}
}

// PegRebalanced reports an admin-only reserve top-up on one side.
type PegRebalanced struct {
	Amount   *big.Int
	USDNSide bool
}

func (PegRebalanced) EventType() string { return TypePegRebalanced }

func (e PegRebalanced) Record() *Record {
	side := "stablecoin"
	if e.USDNSide {
		side = "usdn"
	}
	return &Record{
		Type: TypePegRebalanced,
		Attributes: map[string]string{
			"amount": amountString(e.Amount),
			"side":   side,
		},
	}
}

// TokenWithdrawn reports the admin emergency withdrawal escape hatch.
type TokenWithdrawn struct {
	To     common.Address
	Token  common.Address
	Amount *big.Int
}

func (TokenWithdrawn) EventType() string { return TypeTokenWithdrawn }

func (e TokenWithdrawn) Record() *Record {
	return &Record{
		Type: TypeTokenWithdrawn,
		Attributes: map[string]string{
			"to":     e.To.Hex(),
			"token":  e.Token.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// TradingFeeUpdated reports a factory-level trading fee change.
type TradingFeeUpdated struct {
	FeeBps uint64
}

func (TradingFeeUpdated) EventType() string { return TypeTradingFeeUpdated }

func (e TradingFeeUpdated) Record() *Record {
	return &Record{
		Type:       TypeTradingFeeUpdated,
		Attributes: map[string]string{"feeBps": strconv.FormatUint(e.FeeBps, 10)},
	}
}

// RewardRateUpdated reports a factory-level liquidity reward rate change.
type RewardRateUpdated struct {
	Rate *big.Int
}

func (RewardRateUpdated) EventType() string { return TypeRewardRateUpdated }

func (e RewardRateUpdated) Record() *Record {
	return &Record{
		Type:       TypeRewardRateUpdated,
		Attributes: map[string]string{"rate": amountString(e.Rate)},
	}
}

// RewardPeriodUpdated reports the accrual cooldown changing, in seconds.
type RewardPeriodUpdated struct {
	PeriodSeconds uint64
}

func (RewardPeriodUpdated) EventType() string { return TypeRewardPeriodUpdated }

func (e RewardPeriodUpdated) Record() *Record {
	return &Record{
		Type:       TypeRewardPeriodUpdated,
		Attributes: map[string]string{"periodSeconds": strconv.FormatUint(e.PeriodSeconds, 10)},
	}
}

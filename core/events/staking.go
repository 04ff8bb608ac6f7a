package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event type tags emitted by the staking vault.
const (
	TypeStaked                  = "staking.staked"
	TypeWithdrawn               = "staking.withdrawn"
	TypeStakeRewardClaimed      = "staking.rewardClaimed"
	TypeStakeRewardRateUpdated  = "staking.rewardRateUpdated"
	TypeMinTransactionAmountSet = "staking.minimumTransactionAmountUpdated"
)

// Staked reports a new deposit into the vault.
type Staked struct {
	Staker common.Address
	Amount *big.Int
}

func (Staked) EventType() string { return TypeStaked }

func (e Staked) Record() *Record {
	return &Record{
		Type: TypeStaked,
		Attributes: map[string]string{
			"staker": e.Staker.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// Withdrawn reports staked principal leaving the vault.
type Withdrawn struct {
	Staker common.Address
	Amount *big.Int
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Record() *Record {
	return &Record{
		Type: TypeWithdrawn,
		Attributes: map[string]string{
			"staker": e.Staker.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// StakeRewardClaimed reports a staking reward payout.
type StakeRewardClaimed struct {
	Staker common.Address
	Amount *big.Int
}

func (StakeRewardClaimed) EventType() string { return TypeStakeRewardClaimed }

func (e StakeRewardClaimed) Record() *Record {
	return &Record{
		Type: TypeStakeRewardClaimed,
		Attributes: map[string]string{
			"staker": e.Staker.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// StakeRewardRateUpdated reports a change to the daily reward rate.
type StakeRewardRateUpdated struct {
	Rate *big.Int
}

func (StakeRewardRateUpdated) EventType() string { return TypeStakeRewardRateUpdated }

func (e StakeRewardRateUpdated) Record() *Record {
	return &Record{
		Type:       TypeStakeRewardRateUpdated,
		Attributes: map[string]string{"rate": amountString(e.Rate)},
	}
}

// MinimumTransactionAmountUpdated reports the new stake floor.
type MinimumTransactionAmountUpdated struct {
	Amount *big.Int
}

func (MinimumTransactionAmountUpdated) EventType() string { return TypeMinTransactionAmountSet }

func (e MinimumTransactionAmountUpdated) Record() *Record {
	return &Record{
		Type:       TypeMinTransactionAmountSet,
		Attributes: map[string]string{"amount": amountString(e.Amount)},
	}
}

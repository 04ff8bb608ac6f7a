package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Event type tags emitted by the stablecoin controller and its ledger.
const (
	TypeTransfer              = "stablecoin.transfer"
	TypeMinted                = "stablecoin.minted"
	TypeBurned                = "stablecoin.burned"
	TypeReserveUpdated        = "stablecoin.reserveUpdated"
	TypeReserveRatioUpdated   = "stablecoin.reserveRatioUpdated"
	TypeFeePercentageUpdated  = "stablecoin.feePercentageUpdated"
	TypeTransactionFeeUpdated = "stablecoin.transactionFeeUpdated"
	TypeTreasuryWalletUpdated = "stablecoin.treasuryWalletUpdated"
	TypeAddressFrozen         = "stablecoin.addressFrozen"
	TypeAddressUnfrozen       = "stablecoin.addressUnfrozen"
	TypeFrozenAddressWiped    = "stablecoin.frozenAddressWiped"
	TypePaused                = "stablecoin.paused"
	TypeUnpaused              = "stablecoin.unpaused"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Transfer reports the net amount delivered to the recipient. A fee deducted
// transfer emits two of these: principal to the recipient and fee to the
// treasury.
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Record() *Record {
	return &Record{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// Minted is emitted when the supply controller issues new tokens.
type Minted struct {
	To     common.Address
	Amount *big.Int
}

func (Minted) EventType() string { return TypeMinted }

func (e Minted) Record() *Record {
	return &Record{
		Type: TypeMinted,
		Attributes: map[string]string{
			"to":     e.To.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// Burned is emitted when tokens are retired back into the reserve counter.
type Burned struct {
	From   common.Address
	Amount *big.Int
}

func (Burned) EventType() string { return TypeBurned }

func (e Burned) Record() *Record {
	return &Record{
		Type: TypeBurned,
		Attributes: map[string]string{
			"from":   e.From.Hex(),
			"amount": amountString(e.Amount),
		},
	}
}

// ReserveUpdated is emitted when the internal reserve counter is overwritten.
type ReserveUpdated struct {
	NewValue *big.Int
}

func (ReserveUpdated) EventType() string { return TypeReserveUpdated }

func (e ReserveUpdated) Record() *Record {
	return &Record{
		Type:       TypeReserveUpdated,
		Attributes: map[string]string{"newValue": amountString(e.NewValue)},
	}
}

// ReserveRatioUpdated reports the new fixed-point backing ratio.
type ReserveRatioUpdated struct {
	Ratio *big.Int
}

func (ReserveRatioUpdated) EventType() string { return TypeReserveRatioUpdated }

func (e ReserveRatioUpdated) Record() *Record {
	return &Record{
		Type:       TypeReserveRatioUpdated,
		Attributes: map[string]string{"ratio": amountString(e.Ratio)},
	}
}

// FeePercentageUpdated reports a new transaction fee in basis points.
type FeePercentageUpdated struct {
	FeeBps uint64
}

func (FeePercentageUpdated) EventType() string { return TypeFeePercentageUpdated }

func (e FeePercentageUpdated) Record() *Record {
	return &Record{
		Type:       TypeFeePercentageUpdated,
		Attributes: map[string]string{"feeBps": strconv.FormatUint(e.FeeBps, 10)},
	}
}

// TransactionFeeUpdated reports the fee toggle flipping.
type TransactionFeeUpdated struct {
	Enabled bool
}

func (TransactionFeeUpdated) EventType() string { return TypeTransactionFeeUpdated }

func (e TransactionFeeUpdated) Record() *Record {
	return &Record{
		Type:       TypeTransactionFeeUpdated,
		Attributes: map[string]string{"enabled": strconv.FormatBool(e.Enabled)},
	}
}

// TreasuryWalletUpdated reports the new fee routing destination.
type TreasuryWalletUpdated struct {
	Wallet common.Address
}

func (TreasuryWalletUpdated) EventType() string { return TypeTreasuryWalletUpdated }

func (e TreasuryWalletUpdated) Record() *Record {
	return &Record{
		Type:       TypeTreasuryWalletUpdated,
		Attributes: map[string]string{"wallet": e.Wallet.Hex()},
	}
}

// AddressFrozen is emitted when an account is placed under asset protection.
type AddressFrozen struct {
	Addr common.Address
}

func (AddressFrozen) EventType() string { return TypeAddressFrozen }

func (e AddressFrozen) Record() *Record {
	return &Record{
		Type:       TypeAddressFrozen,
		Attributes: map[string]string{"address": e.Addr.Hex()},
	}
}

// AddressUnfrozen is emitted when an account is released.
type AddressUnfrozen struct {
	Addr common.Address
}

func (AddressUnfrozen) EventType() string { return TypeAddressUnfrozen }

func (e AddressUnfrozen) Record() *Record {
	return &Record{
		Type:       TypeAddressUnfrozen,
		Attributes: map[string]string{"address": e.Addr.Hex()},
	}
}

// FrozenAddressWiped reports the permanent burn of a frozen account's balance.
type FrozenAddressWiped struct {
	Addr   common.Address
	Amount *big.Int
}

func (FrozenAddressWiped) EventType() string { return TypeFrozenAddressWiped }

func (e FrozenAddressWiped) Record() *Record {
	return &Record{
		Type: TypeFrozenAddressWiped,
		Attributes: map[string]string{
			"address": e.Addr.Hex(),
			"amount":  amountString(e.Amount),
		},
	}
}

// Paused is emitted when the stablecoin enters the paused state.
type Paused struct{}

func (Paused) EventType() string { return TypePaused }

func (Paused) Record() *Record {
	return &Record{Type: TypePaused, Attributes: map[string]string{}}
}

// Unpaused is emitted when the stablecoin leaves the paused state.
type Unpaused struct{}

func (Unpaused) EventType() string { return TypeUnpaused }

func (Unpaused) Record() *Record {
	return &Record{Type: TypeUnpaused, Attributes: map[string]string{}}
}

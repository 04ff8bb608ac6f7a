package stablecoin

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"nuchain/core/events"
	"nuchain/native/auditor"
	nativecommon "nuchain/native/common"
	"nuchain/native/token"
)

// Token identity constants.
const (
	Name   = "NuChain Stablecoin"
	Symbol = "USDN"
)

// MaxFeeBps caps the transaction fee at 10%.
const MaxFeeBps = 1000

var (
	// InitialSupply is minted to the default admin at construction: one
	// billion whole tokens.
	InitialSupply = new(big.Int).Mul(big.NewInt(1_000_000_000), token.Unit)
	// MaxSupply is the hard issuance ceiling: two billion whole tokens.
	MaxSupply = new(big.Int).Mul(big.NewInt(2_000_000_000), token.Unit)
	// DefaultReserveRatio is fixed-point 1.0: every token fully backed.
	DefaultReserveRatio = new(big.Int).Set(token.Unit)
)

// Stable error identifiers for issuance and configuration preconditions.
var (
	ErrMintExceedsMaxSupply = errors.New("Mint exceeds MAX_SUPPLY")
	ErrInsufficientReserves = errors.New("Insufficient reserves")
	ErrReserveVerification  = errors.New("Reserve verification failed")
	ErrZeroReserveValue     = errors.New("New Reserve value can't be equal to zero")
	ErrZeroReserveRatio     = errors.New("Reserve ratio must be greater than zero")
	ErrFeeTooHigh           = errors.New("Fee cannot exceed 10%")
	ErrInvalidTreasury      = errors.New("Invalid treasury wallet")
)

// Config carries the construction parameters for the controller.
type Config struct {
	DefaultAdmin   common.Address
	TokenAddress   common.Address
	TreasuryWallet common.Address
	Auditor        *auditor.Auditor
	Authorizer     nativecommon.Authorizer
	Emitter        events.Emitter
}

// Controller wraps the fixed-point ledger with supply-cap enforcement, the
// dual reserve gate (internal counter plus external attestations) and the
// asset-protection actions. All capability checks funnel through the injected
// Authorizer; the controller never assumes a role hierarchy.
type Controller struct {
	mu sync.Mutex

	ledger  *token.Ledger
	auditor *auditor.Auditor
	auth    nativecommon.Authorizer
	emitter events.Emitter

	maxSupply       *big.Int
	balanceReserves *big.Int
	reserveRatio    *big.Int
}

// New constructs the stablecoin, minting the initial supply to the default
// admin and wiring the whitelist capability as the fee exemption.
func New(cfg Config) (*Controller, error) {
	if cfg.Auditor == nil {
		return nil, fmt.Errorf("stablecoin: reserve auditor required")
	}
	auth := cfg.Authorizer
	if auth == nil {
		auth = nativecommon.NewRoleSet(cfg.DefaultAdmin)
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	ledger := token.NewLedger(Name, Symbol, cfg.TokenAddress)
	ledger.SetEmitter(emitter)
	ledger.SetTreasury(cfg.TreasuryWallet)
	ledger.SetFeeExempt(func(addr common.Address) bool {
		return auth.Allow(addr, nativecommon.CapWhitelisted)
	})
	if err := ledger.Credit(cfg.DefaultAdmin, InitialSupply); err != nil {
		return nil, err
	}

	return &Controller{
		ledger:          ledger,
		auditor:         cfg.Auditor,
		auth:            auth,
		emitter:         emitter,
		maxSupply:       new(big.Int).Set(MaxSupply),
		balanceReserves: big.NewInt(0),
		reserveRatio:    new(big.Int).Set(DefaultReserveRatio),
	}, nil
}

// Ledger exposes the underlying token book for transfers and balance queries.
func (c *Controller) Ledger() *token.Ledger { return c.ledger }

// TotalSupply returns the circulating supply.
func (c *Controller) TotalSupply() *big.Int { return c.ledger.TotalSupply() }

// MaxSupplyCap returns the issuance ceiling.
func (c *Controller) MaxSupplyCap() *big.Int {
	return new(big.Int).Set(c.maxSupply)
}

// BalanceReserves returns the internal reserve accounting counter. It is
// distinct from the auditor's externally recorded attestations.
func (c *Controller) BalanceReserves() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceReserves)
}

// ReserveRatio returns the fixed-point backing ratio.
func (c *Controller) ReserveRatio() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.reserveRatio)
}

// Mint issues new tokens. Check order is fixed: supply cap, then the internal
// reserve counter, then auditor verification; the first failing check decides
// the reported error. On success the reserve counter shrinks by the minted
// amount.
func (c *Controller) Mint(caller, to common.Address, amount *big.Int) error {
	if !c.auth.Allow(caller, nativecommon.CapSupplyController) {
		return nativecommon.ErrNotAuthorized
	}
	if c.ledger.Paused() {
		return token.ErrTransfersPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return token.ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	supply := c.ledger.TotalSupply()
	resulting := new(big.Int).Add(supply, amount)
	if resulting.Cmp(c.maxSupply) > 0 {
		return ErrMintExceedsMaxSupply
	}
	if amount.Cmp(c.balanceReserves) > 0 {
		return ErrInsufficientReserves
	}
	required := new(big.Int).Mul(resulting, c.reserveRatio)
	required.Quo(required, token.Unit)
	sufficient, err := c.auditor.VerifyReserves(required)
	if err != nil {
		return err
	}
	if !sufficient {
		return ErrReserveVerification
	}

	if err := c.ledger.Credit(to, amount); err != nil {
		return err
	}
	c.balanceReserves.Sub(c.balanceReserves, amount)
	c.emitter.Emit(events.Minted{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn retires tokens from the caller's balance and returns the amount to the
// internal reserve counter.
func (c *Controller) Burn(caller common.Address, amount *big.Int) error {
	if !c.auth.Allow(caller, nativecommon.CapSupplyController) {
		return nativecommon.ErrNotAuthorized
	}
	if c.ledger.Paused() {
		return token.ErrTransfersPaused
	}
	if err := c.ledger.Debit(caller, amount); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceReserves.Add(c.balanceReserves, amount)
	c.emitter.Emit(events.Burned{From: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

// UpdateReserves overwrites the internal reserve counter.
func (c *Controller) UpdateReserves(caller common.Address, newValue *big.Int) error {
	if !c.auth.Allow(caller, nativecommon.CapSupplyController) {
		return nativecommon.ErrNotAuthorized
	}
	if newValue == nil || newValue.Sign() <= 0 {
		return ErrZeroReserveValue
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceReserves = new(big.Int).Set(newValue)
	c.emitter.Emit(events.ReserveUpdated{NewValue: new(big.Int).Set(newValue)})
	return nil
}

// SetReserveRatio adjusts the fixed-point backing requirement.
func (c *Controller) SetReserveRatio(caller common.Address, ratio *big.Int) error {
	if !c.auth.Allow(caller, nativecommon.CapAdmin) {
		return nativecommon.ErrNotAuthorized
	}
	if ratio == nil || ratio.Sign() <= 0 {
		return ErrZeroReserveRatio
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserveRatio = new(big.Int).Set(ratio)
	c.emitter.Emit(events.ReserveRatioUpdated{Ratio: new(big.Int).Set(ratio)})
	return nil
}

// SetTransactionFee updates the transfer fee, capped at MaxFeeBps.
func (c *Controller) SetTransactionFee(caller common.Address, bps uint64) error {
	if !c.auth.Allow(caller, nativecommon.CapTreasurer) {
		return nativecommon.ErrNotAuthorized
	}
	if bps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	c.ledger.SetFeeBps(bps)
	c.emitter.Emit(events.FeePercentageUpdated{FeeBps: bps})
	return nil
}

// SetTreasuryWallet points fee routing at a new wallet.
func (c *Controller) SetTreasuryWallet(caller, wallet common.Address) error {
	if !c.auth.Allow(caller, nativecommon.CapTreasurer) {
		return nativecommon.ErrNotAuthorized
	}
	if wallet == (common.Address{}) {
		return ErrInvalidTreasury
	}
	c.ledger.SetTreasury(wallet)
	c.emitter.Emit(events.TreasuryWalletUpdated{Wallet: wallet})
	return nil
}

// SetTransactionFeeEnabled toggles fee deduction.
func (c *Controller) SetTransactionFeeEnabled(caller common.Address, enabled bool) error {
	if !c.auth.Allow(caller, nativecommon.CapTreasurer) {
		return nativecommon.ErrNotAuthorized
	}
	c.ledger.SetFeeEnabled(enabled)
	c.emitter.Emit(events.TransactionFeeUpdated{Enabled: enabled})
	return nil
}

// Freeze places an account under asset protection.
func (c *Controller) Freeze(caller, addr common.Address) error {
	if !c.auth.Allow(caller, nativecommon.CapAssetProtector) {
		return nativecommon.ErrNotAuthorized
	}
	return c.ledger.Freeze(addr)
}

// Unfreeze releases an account from asset protection.
func (c *Controller) Unfreeze(caller, addr common.Address) error {
	if !c.auth.Allow(caller, nativecommon.CapAssetProtector) {
		return nativecommon.ErrNotAuthorized
	}
	return c.ledger.Unfreeze(addr)
}

// WipeFrozenAddress permanently burns a frozen account's balance. The burned
// amount does not return to the reserve counter.
func (c *Controller) WipeFrozenAddress(caller, addr common.Address) (*big.Int, error) {
	if !c.auth.Allow(caller, nativecommon.CapAssetProtector) {
		return nil, nativecommon.ErrNotAuthorized
	}
	return c.ledger.WipeFrozen(addr)
}

// Pause halts transfers, minting and burning.
func (c *Controller) Pause(caller common.Address) error {
	if !c.auth.Allow(caller, nativecommon.CapPauser) {
		return nativecommon.ErrNotAuthorized
	}
	if err := c.ledger.Pause(); err != nil {
		return err
	}
	c.emitter.Emit(events.Paused{})
	return nil
}

// Unpause resumes normal operation.
func (c *Controller) Unpause(caller common.Address) error {
	if !c.auth.Allow(caller, nativecommon.CapPauser) {
		return nativecommon.ErrNotAuthorized
	}
	if err := c.ledger.Unpause(); err != nil {
		return err
	}
	c.emitter.Emit(events.Unpaused{})
	return nil
}

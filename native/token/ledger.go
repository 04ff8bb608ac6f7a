package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"nuchain/core/events"
)

// Stable error identifiers surfaced by ledger operations. Tests and callers
// match on these exact messages, so they never change shape.
var (
	ErrInvalidAmount         = errors.New("Invalid Amount")
	ErrSenderFrozen          = errors.New("Sender account is frozen")
	ErrRecipientFrozen       = errors.New("Recipient account is frozen")
	ErrInsufficientBalance   = errors.New("Insufficient balance")
	ErrInsufficientAllowance = errors.New("Insufficient allowance")
	ErrTransfersPaused       = errors.New("Token transfers are paused")
	ErrAlreadyFrozen         = errors.New("Account already frozen")
	ErrNotFrozen             = errors.New("Account is not frozen")
	ErrAlreadyPaused         = errors.New("Token already paused")
	ErrNotPaused             = errors.New("Token is not paused")
)

// Decimals is the fixed-point precision shared by every economy token.
const Decimals = 18

// feeDenominator converts basis points into a proportion.
var feeDenominator = big.NewInt(10_000)

// Unit is one whole token in fixed-point representation (10^18).
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// FeeExempt reports whether an address is excluded from transfer fees.
// The stablecoin controller wires this to the whitelist capability.
type FeeExempt func(addr common.Address) bool

// Ledger is an 18-decimal fixed-point balance and allowance book with
// frozen-account gating and an optional proportional transfer fee. It is the
// accounting primitive beneath the stablecoin, the paired pool token and the
// staking token. All methods are safe for concurrent use; each operation is
// atomic under the internal mutex.
type Ledger struct {
	mu sync.Mutex

	name    string
	symbol  string
	address common.Address

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	frozen      map[common.Address]bool

	paused     bool
	feeBps     uint64
	feeEnabled bool
	treasury   common.Address
	feeExempt  FeeExempt

	emitter events.Emitter
}

// NewLedger constructs an empty ledger for the token identified by address.
func NewLedger(name, symbol string, address common.Address) *Ledger {
	return &Ledger{
		name:        name,
		symbol:      symbol,
		address:     address,
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		frozen:      make(map[common.Address]bool),
		emitter:     events.NoopEmitter{},
	}
}

// SetEmitter wires the downstream event sink. A nil emitter restores the noop.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetFeeExempt installs the whitelist predicate consulted on fee deduction.
func (l *Ledger) SetFeeExempt(exempt FeeExempt) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeExempt = exempt
}

// Name returns the token name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Address returns the token identity used in pool pair checks.
func (l *Ledger) Address() common.Address { return l.address }

// TotalSupply returns a copy of the current total supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns a copy of the balance for addr, zero when absent.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(addr))
}

// Allowance returns the remaining spend approved by owner for spender.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if approvals, ok := l.allowances[owner]; ok {
		if current, ok := approvals[spender]; ok {
			return new(big.Int).Set(current)
		}
	}
	return big.NewInt(0)
}

// IsFrozen reports whether the address is under asset protection.
func (l *Ledger) IsFrozen(addr common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen[addr]
}

// Paused reports the transfer pause flag.
func (l *Ledger) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// FeeBps returns the configured transfer fee in basis points.
func (l *Ledger) FeeBps() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feeBps
}

// FeeEnabled reports whether transfers currently deduct the fee.
func (l *Ledger) FeeEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feeEnabled
}

// Treasury returns the wallet receiving deducted fees.
func (l *Ledger) Treasury() common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury
}

// SetFeeBps overwrites the transfer fee. Bounds are the controller's concern.
func (l *Ledger) SetFeeBps(bps uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeBps = bps
}

// SetFeeEnabled toggles fee deduction on ordinary transfers.
func (l *Ledger) SetFeeEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeEnabled = enabled
}

// SetTreasury points fee routing at a new wallet.
func (l *Ledger) SetTreasury(wallet common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.treasury = wallet
}

// Pause halts ordinary transfers. Pausing twice fails.
func (l *Ledger) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return ErrAlreadyPaused
	}
	l.paused = true
	return nil
}

// Unpause resumes transfers. Unpausing an active ledger fails.
func (l *Ledger) Unpause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.paused {
		return ErrNotPaused
	}
	l.paused = false
	return nil
}

// Transfer moves amount from sender to recipient, deducting the proportional
// fee when enabled and neither party is fee-exempt. The fee and the net
// principal are two separate internal movements, and the emitted transfer
// event carries the net amount delivered to the recipient.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount)
}

// CanTransfer reports whether a direct transfer would currently succeed,
// running the full validation path without mutating any state. Multi-leg
// operations check every leg through this before moving the first token.
func (l *Ledger) CanTransfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkTransfer(from, to, amount)
}

// CanTransferFrom is CanTransfer plus the spender's allowance check.
func (l *Ledger) CanTransferFrom(spender, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	current, ok := l.allowances[from][spender]
	if !ok || current.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return l.checkTransfer(from, to, amount)
}

// Approve records that spender may move up to amount on behalf of owner.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	approvals, ok := l.allowances[owner]
	if !ok {
		approvals = make(map[common.Address]*big.Int)
		l.allowances[owner] = approvals
	}
	approvals[spender] = new(big.Int).Set(amount)
	return nil
}

// TransferFrom spends an allowance. The allowance is only consumed when the
// underlying transfer succeeds, keeping the operation all-or-nothing.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	approvals := l.allowances[from]
	current, ok := approvals[spender]
	if !ok || current.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	approvals[spender] = new(big.Int).Sub(current, amount)
	return nil
}

// Credit mints amount onto the recipient's balance. This is the controller's
// issuance primitive; supply-cap and reserve gating live above it, and the
// frozen flag is deliberately not consulted (admin paths may mint to frozen
// accounts).
func (l *Ledger) Credit(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setBalance(to, new(big.Int).Add(l.balance(to), amount))
	l.totalSupply.Add(l.totalSupply, amount)
	return nil
}

// Debit burns amount from the holder's balance and the total supply.
func (l *Ledger) Debit(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balance(from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.setBalance(from, new(big.Int).Sub(balance, amount))
	l.totalSupply.Sub(l.totalSupply, amount)
	return nil
}

// Freeze places the address under asset protection. Freezing twice fails.
func (l *Ledger) Freeze(addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen[addr] {
		return ErrAlreadyFrozen
	}
	l.frozen[addr] = true
	l.emitter.Emit(events.AddressFrozen{Addr: addr})
	return nil
}

// Unfreeze lifts asset protection. Unfreezing a live account fails.
func (l *Ledger) Unfreeze(addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.frozen[addr] {
		return ErrNotFrozen
	}
	delete(l.frozen, addr)
	l.emitter.Emit(events.AddressUnfrozen{Addr: addr})
	return nil
}

// WipeFrozen permanently burns the entire balance of a frozen address and
// returns the amount destroyed. The supply shrinks; nothing returns to any
// reserve counter.
func (l *Ledger) WipeFrozen(addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.frozen[addr] {
		return nil, ErrNotFrozen
	}
	wiped := new(big.Int).Set(l.balance(addr))
	l.setBalance(addr, big.NewInt(0))
	l.totalSupply.Sub(l.totalSupply, wiped)
	l.emitter.Emit(events.FrozenAddressWiped{Addr: addr, Amount: wiped})
	return wiped, nil
}

// checkTransfer runs every transfer validation without mutating state.
// Callers hold the mutex.
func (l *Ledger) checkTransfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if l.paused {
		return ErrTransfersPaused
	}
	if l.frozen[from] {
		return ErrSenderFrozen
	}
	if l.frozen[to] {
		return ErrRecipientFrozen
	}
	if l.balance(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// transfer applies the full transfer path. Callers hold the mutex. Every
// validation completes before the first balance mutation so a failure leaves
// no partial state.
func (l *Ledger) transfer(from, to common.Address, amount *big.Int) error {
	if err := l.checkTransfer(from, to, amount); err != nil {
		return err
	}
	balance := l.balance(from)

	fee := big.NewInt(0)
	if l.feeEnabled && l.feeBps > 0 && !l.exempt(from) && !l.exempt(to) {
		fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(l.feeBps))
		fee.Quo(fee, feeDenominator)
	}
	net := new(big.Int).Sub(amount, fee)

	l.setBalance(from, new(big.Int).Sub(balance, amount))
	l.setBalance(to, new(big.Int).Add(l.balance(to), net))
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: net})
	if fee.Sign() > 0 {
		l.setBalance(l.treasury, new(big.Int).Add(l.balance(l.treasury), fee))
		l.emitter.Emit(events.Transfer{From: from, To: l.treasury, Amount: fee})
	}
	return nil
}

func (l *Ledger) exempt(addr common.Address) bool {
	if l.feeExempt == nil {
		return false
	}
	return l.feeExempt(addr)
}

func (l *Ledger) balance(addr common.Address) *big.Int {
	if current, ok := l.balances[addr]; ok {
		return current
	}
	return big.NewInt(0)
}

func (l *Ledger) setBalance(addr common.Address, value *big.Int) {
	l.balances[addr] = value
}

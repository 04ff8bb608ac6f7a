package auditor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"nuchain/core/events"
	nativecommon "nuchain/native/common"
	"nuchain/storage"
)

// Stable error identifiers for attestation preconditions.
var (
	ErrZeroReserve     = errors.New("Reserve amount must be greater than zero")
	ErrStablecoinUnset = errors.New("Set the stable coin address first")
	ErrNoRecords       = errors.New("No reserve records found")
	ErrZeroRequired    = errors.New("Required reserve must be greater than zero")
)

var (
	recordPrefix  = []byte("auditor/reserve/")
	countKey      = []byte("auditor/reserve/count")
	stablecoinKey = []byte("auditor/stablecoin")
)

// Record is one timestamped reserve attestation. Records are append-only and
// never mutated; "latest" is always the last appended entry.
type Record struct {
	ReserveAmount *big.Int
	Timestamp     uint64
}

type storedRecord struct {
	ReserveAmount *big.Int
	Timestamp     uint64
}

// Auditor keeps the append-only attestation ledger and answers sufficiency
// queries for the stablecoin mint path. Records persist through the storage
// backend as RLP so a restarted node keeps its attestation history.
type Auditor struct {
	mu      sync.Mutex
	db      storage.Database
	auth    nativecommon.Authorizer
	emitter events.Emitter
	clock   func() time.Time

	stablecoin    common.Address
	stablecoinSet bool
	count         uint64
	latest        *Record
}

// New constructs an auditor over the supplied backend, reloading any
// previously persisted attestations.
func New(db storage.Database, auth nativecommon.Authorizer) (*Auditor, error) {
	if db == nil {
		return nil, fmt.Errorf("auditor: storage backend required")
	}
	a := &Auditor{
		db:      db,
		auth:    auth,
		emitter: events.NoopEmitter{},
		clock:   time.Now,
	}
	if err := a.reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// SetClock overrides the time source, primarily for deterministic testing.
func (a *Auditor) SetClock(clock func() time.Time) {
	if a == nil || clock == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock = clock
}

// SetEmitter wires the downstream event sink.
func (a *Auditor) SetEmitter(emitter events.Emitter) {
	if a == nil || emitter == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emitter = emitter
}

// SetStableCoinAddress points the auditor at the stablecoin it attests for.
// The pointer may be updated repeatedly; only authorization is validated.
func (a *Auditor) SetStableCoinAddress(caller, addr common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.allowed(caller, nativecommon.CapManager) {
		return nativecommon.ErrNotAuthorized
	}
	if err := a.db.Put(stablecoinKey, addr.Bytes()); err != nil {
		return err
	}
	a.stablecoin = addr
	a.stablecoinSet = true
	a.emitter.Emit(events.StablecoinAddressSet{Addr: addr})
	return nil
}

// StablecoinAddress returns the configured pointer and whether it was set.
func (a *Auditor) StablecoinAddress() (common.Address, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stablecoin, a.stablecoinSet
}

// RecordReserve appends a new attestation stamped with the current time.
// Timestamps never regress even if the wall clock does.
func (a *Auditor) RecordReserve(caller common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.allowed(caller, nativecommon.CapManager) {
		return nativecommon.ErrNotAuthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroReserve
	}
	if !a.stablecoinSet {
		return ErrStablecoinUnset
	}

	now := a.clock().UTC().Unix()
	ts := uint64(0)
	if now > 0 {
		ts = uint64(now)
	}
	if a.latest != nil && ts < a.latest.Timestamp {
		ts = a.latest.Timestamp
	}

	record := &Record{ReserveAmount: new(big.Int).Set(amount), Timestamp: ts}
	encoded, err := rlp.EncodeToBytes(&storedRecord{ReserveAmount: record.ReserveAmount, Timestamp: record.Timestamp})
	if err != nil {
		return err
	}
	if err := a.db.Put(recordKey(a.count), encoded); err != nil {
		return err
	}
	next := a.count + 1
	if err := a.db.Put(countKey, encodeCount(next)); err != nil {
		return err
	}
	a.count = next
	a.latest = record
	a.emitter.Emit(events.ReserveRecorded{Amount: record.ReserveAmount, Timestamp: record.Timestamp})
	return nil
}

// LatestReserve returns the most recent attestation.
func (a *Auditor) LatestReserve() (*Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return nil, ErrNoRecords
	}
	return a.latest.copy(), nil
}

// VerifyReserves reports whether the latest attested reserve covers the
// required amount. It has no side effects.
func (a *Auditor) VerifyReserves(required *big.Int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if required == nil || required.Sign() <= 0 {
		return false, ErrZeroRequired
	}
	if a.latest == nil {
		return false, ErrNoRecords
	}
	return a.latest.ReserveAmount.Cmp(required) >= 0, nil
}

// Count returns the number of recorded attestations.
func (a *Auditor) Count() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// At returns the attestation at the given append index.
func (a *Auditor) At(index uint64) (*Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index >= a.count {
		return nil, ErrNoRecords
	}
	return a.readRecord(index)
}

func (a *Auditor) reload() error {
	raw, err := a.db.Get(countKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// fresh backend
	case err != nil:
		return err
	default:
		if len(raw) != 8 {
			return fmt.Errorf("auditor: corrupt record count")
		}
		a.count = binary.BigEndian.Uint64(raw)
	}
	if a.count > 0 {
		latest, err := a.readRecord(a.count - 1)
		if err != nil {
			return err
		}
		a.latest = latest
	}
	addrRaw, err := a.db.Get(stablecoinKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	a.stablecoin = common.BytesToAddress(addrRaw)
	a.stablecoinSet = true
	return nil
}

func (a *Auditor) readRecord(index uint64) (*Record, error) {
	raw, err := a.db.Get(recordKey(index))
	if err != nil {
		return nil, fmt.Errorf("auditor: read record %d: %w", index, err)
	}
	var stored storedRecord
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("auditor: decode record %d: %w", index, err)
	}
	amount := stored.ReserveAmount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &Record{ReserveAmount: amount, Timestamp: stored.Timestamp}, nil
}

func (a *Auditor) allowed(caller common.Address, capability string) bool {
	if a.auth == nil {
		return false
	}
	return a.auth.Allow(caller, capability)
}

func (r *Record) copy() *Record {
	if r == nil {
		return nil
	}
	return &Record{ReserveAmount: new(big.Int).Set(r.ReserveAmount), Timestamp: r.Timestamp}
}

func recordKey(index uint64) []byte {
	buf := make([]byte, len(recordPrefix)+8)
	copy(buf, recordPrefix)
	binary.BigEndian.PutUint64(buf[len(recordPrefix):], index)
	return buf
}

func encodeCount(count uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return buf
}

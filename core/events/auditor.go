package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Event type tags emitted by the reserve auditor.
const (
	TypeReserveRecorded   = "auditor.reserveRecorded"
	TypeStablecoinAddrSet = "auditor.stablecoinAddressSet"
)

// ReserveRecorded captures a new reserve attestation and its timestamp.
type ReserveRecorded struct {
	Amount    *big.Int
	Timestamp uint64
}

func (ReserveRecorded) EventType() string { return TypeReserveRecorded }

func (e ReserveRecorded) Record() *Record {
	return &Record{
		Type: TypeReserveRecorded,
		Attributes: map[string]string{
			"amount":    amountString(e.Amount),
			"timestamp": strconv.FormatUint(e.Timestamp, 10),
		},
	}
}

// StablecoinAddressSet reports the auditor being pointed at a stablecoin.
type StablecoinAddressSet struct {
	Addr common.Address
}

func (StablecoinAddressSet) EventType() string { return TypeStablecoinAddrSet }

func (e StablecoinAddressSet) Record() *Record {
	return &Record{
		Type:       TypeStablecoinAddrSet,
		Attributes: map[string]string{"address": e.Addr.Hex()},
	}
}

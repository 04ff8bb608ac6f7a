package auditor

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "nuchain/native/common"
	"nuchain/storage"
)

var (
	admin      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	outsider   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stablecoin = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newTestAuditor(t *testing.T, db storage.Database) *Auditor {
	t.Helper()
	a, err := New(db, nativecommon.NewRoleSet(admin))
	if err != nil {
		t.Fatalf("new auditor: %v", err)
	}
	a.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return a
}

func TestRecordReserveRequiresSetup(t *testing.T) {
	a := newTestAuditor(t, storage.NewMemDB())

	if err := a.RecordReserve(outsider, big.NewInt(1)); !errors.Is(err, nativecommon.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := a.RecordReserve(admin, big.NewInt(0)); !errors.Is(err, ErrZeroReserve) {
		t.Fatalf("expected ErrZeroReserve, got %v", err)
	}
	if err := a.RecordReserve(admin, big.NewInt(100)); !errors.Is(err, ErrStablecoinUnset) {
		t.Fatalf("expected ErrStablecoinUnset, got %v", err)
	}

	if err := a.SetStableCoinAddress(admin, stablecoin); err != nil {
		t.Fatalf("set stablecoin: %v", err)
	}
	if err := a.RecordReserve(admin, big.NewInt(100)); err != nil {
		t.Fatalf("record reserve: %v", err)
	}
}

func TestLatestReserveTracksAppends(t *testing.T) {
	a := newTestAuditor(t, storage.NewMemDB())
	if err := a.SetStableCoinAddress(admin, stablecoin); err != nil {
		t.Fatalf("set stablecoin: %v", err)
	}

	if _, err := a.LatestReserve(); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}

	for _, amount := range []int64{100, 250, 75} {
		if err := a.RecordReserve(admin, big.NewInt(amount)); err != nil {
			t.Fatalf("record %d: %v", amount, err)
		}
	}
	latest, err := a.LatestReserve()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ReserveAmount.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("unexpected latest amount: %s", latest.ReserveAmount)
	}
	if a.Count() != 3 {
		t.Fatalf("unexpected record count: %d", a.Count())
	}

	second, err := a.At(1)
	if err != nil {
		t.Fatalf("at(1): %v", err)
	}
	if second.ReserveAmount.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected historical amount: %s", second.ReserveAmount)
	}
}

func TestVerifyReserves(t *testing.T) {
	a := newTestAuditor(t, storage.NewMemDB())
	if err := a.SetStableCoinAddress(admin, stablecoin); err != nil {
		t.Fatalf("set stablecoin: %v", err)
	}

	if _, err := a.VerifyReserves(big.NewInt(0)); !errors.Is(err, ErrZeroRequired) {
		t.Fatalf("expected ErrZeroRequired, got %v", err)
	}
	if _, err := a.VerifyReserves(big.NewInt(100)); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}

	if err := a.RecordReserve(admin, big.NewInt(500)); err != nil {
		t.Fatalf("record: %v", err)
	}
	ok, err := a.VerifyReserves(big.NewInt(500))
	if err != nil || !ok {
		t.Fatalf("expected sufficiency at the boundary, got %v %v", ok, err)
	}
	ok, err = a.VerifyReserves(big.NewInt(501))
	if err != nil || ok {
		t.Fatalf("expected insufficiency above latest, got %v %v", ok, err)
	}

	// Verification must not consume or mutate records.
	if a.Count() != 1 {
		t.Fatalf("verification mutated record count: %d", a.Count())
	}
}

func TestAuditorReloadsFromStorage(t *testing.T) {
	db := storage.NewMemDB()
	a := newTestAuditor(t, db)
	if err := a.SetStableCoinAddress(admin, stablecoin); err != nil {
		t.Fatalf("set stablecoin: %v", err)
	}
	if err := a.RecordReserve(admin, big.NewInt(900)); err != nil {
		t.Fatalf("record: %v", err)
	}

	reloaded := newTestAuditor(t, db)
	addr, set := reloaded.StablecoinAddress()
	if !set || addr != stablecoin {
		t.Fatalf("stablecoin pointer lost on reload: %v %v", addr, set)
	}
	latest, err := reloaded.LatestReserve()
	if err != nil {
		t.Fatalf("latest after reload: %v", err)
	}
	if latest.ReserveAmount.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("unexpected reloaded amount: %s", latest.ReserveAmount)
	}
	if reloaded.Count() != 1 {
		t.Fatalf("unexpected reloaded count: %d", reloaded.Count())
	}
}

func TestRecordTimestampsNeverRegress(t *testing.T) {
	a := newTestAuditor(t, storage.NewMemDB())
	if err := a.SetStableCoinAddress(admin, stablecoin); err != nil {
		t.Fatalf("set stablecoin: %v", err)
	}

	now := int64(1_700_000_000)
	a.SetClock(func() time.Time { return time.Unix(now, 0) })
	if err := a.RecordReserve(admin, big.NewInt(10)); err != nil {
		t.Fatalf("record: %v", err)
	}

	now = 1_600_000_000 // wall clock steps backwards
	if err := a.RecordReserve(admin, big.NewInt(20)); err != nil {
		t.Fatalf("record after clock step: %v", err)
	}
	latest, err := a.LatestReserve()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Timestamp != 1_700_000_000 {
		t.Fatalf("timestamp regressed: %d", latest.Timestamp)
	}
}

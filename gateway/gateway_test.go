package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nuchain/gateway/middleware"
	"nuchain/native/auditor"
	nativecommon "nuchain/native/common"
	"nuchain/native/liquidity"
	"nuchain/native/stablecoin"
	"nuchain/native/staking"
	"nuchain/native/token"
	"nuchain/storage"
)

var (
	admin        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	holder       = common.HexToAddress("0x0000000000000000000000000000000000000002")
	treasuryAddr = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	usdnAddr     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	partnerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	poolAddr     = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	vaultAddr    = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), token.Unit)
}

func newTestServer(t *testing.T) (*httptest.Server, *stablecoin.Controller) {
	t.Helper()
	roles := nativecommon.NewRoleSet(admin)

	aud, err := auditor.New(storage.NewMemDB(), roles)
	require.NoError(t, err)
	aud.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	require.NoError(t, aud.SetStableCoinAddress(admin, usdnAddr))

	controller, err := stablecoin.New(stablecoin.Config{
		DefaultAdmin:   admin,
		TokenAddress:   usdnAddr,
		TreasuryWallet: treasuryAddr,
		Auditor:        aud,
		Authorizer:     roles,
	})
	require.NoError(t, err)

	partner := token.NewLedger("Partner Stablecoin", "PUSD", partnerAddr)
	factory := liquidity.NewFactory(controller.Ledger(), roles)
	_, err = factory.CreatePool(admin, poolAddr, partner)
	require.NoError(t, err)

	vault := staking.NewVault(controller.Ledger(), vaultAddr, roles)

	svc := NewService(Config{
		Stablecoin: controller,
		Auditor:    aud,
		Factory:    factory,
		Vault:      vault,
	})
	server := httptest.NewServer(svc.Router(middleware.RateLimit{RequestsPerMinute: 6000, Burst: 100}))
	t.Cleanup(server.Close)
	return server, controller
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStablecoinStatus(t *testing.T) {
	server, controller := newTestServer(t)

	resp, err := http.Get(server.URL + "/v1/stablecoin")
	require.NoError(t, err)
	body := decode(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "USDN", body["symbol"])
	require.Equal(t, controller.TotalSupply().String(), body["totalSupply"])
}

func TestTransferEndpoint(t *testing.T) {
	server, controller := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/stablecoin/transfer", map[string]string{
		"from":   admin.Hex(),
		"to":     holder.Hex(),
		"amount": tokens(25).String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Equal(t, 0, controller.Ledger().BalanceOf(holder).Cmp(tokens(25)))

	resp, err := http.Get(fmt.Sprintf("%s/v1/stablecoin/balance/%s", server.URL, holder.Hex()))
	require.NoError(t, err)
	body := decode(t, resp)
	require.Equal(t, tokens(25).String(), body["balance"])
}

func TestTransferRejectsBadRequests(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/stablecoin/transfer", map[string]string{
		"from":   "not-an-address",
		"to":     holder.Hex(),
		"amount": "10",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/v1/stablecoin/transfer", map[string]string{
		"from":   admin.Hex(),
		"to":     holder.Hex(),
		"amount": "-5",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMintRequiresAuthorization(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/stablecoin/mint", map[string]string{
		"caller": holder.Hex(),
		"to":     holder.Hex(),
		"amount": tokens(10).String(),
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, nativecommon.ErrNotAuthorized.Error(), body["error"])
}

func TestReserveAndMintFlow(t *testing.T) {
	server, controller := newTestServer(t)

	// Attest and fund the internal counter, then mint through the gateway.
	resp := postJSON(t, server.URL+"/v1/auditor/record", map[string]string{
		"caller": admin.Hex(),
		"amount": new(big.Int).Add(stablecoin.InitialSupply, tokens(100)).String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, controller.UpdateReserves(admin, tokens(100)))

	resp = postJSON(t, server.URL+"/v1/stablecoin/mint", map[string]string{
		"caller": admin.Hex(),
		"to":     holder.Hex(),
		"amount": tokens(100).String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 0, controller.Ledger().BalanceOf(holder).Cmp(tokens(100)))

	resp, err := http.Get(server.URL + "/v1/auditor/latest")
	require.NoError(t, err)
	body := decode(t, resp)
	require.Equal(t, float64(1), body["count"])
}

func TestPoolEndpoints(t *testing.T) {
	server, controller := newTestServer(t)
	require.NoError(t, controller.Ledger().Approve(admin, poolAddr, tokens(100)))

	resp, err := http.Get(fmt.Sprintf("%s/v1/pools/%s/", server.URL, partnerAddr.Hex()))
	require.NoError(t, err)
	body := decode(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, poolAddr.Hex(), body["pool"])

	resp, err = http.Get(fmt.Sprintf("%s/v1/pools/%s/", server.URL, holder.Hex()))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStakingEndpoints(t *testing.T) {
	server, controller := newTestServer(t)
	require.NoError(t, controller.Ledger().Approve(admin, vaultAddr, tokens(500)))

	resp := postJSON(t, server.URL+"/v1/staking/stake", map[string]string{
		"staker": admin.Hex(),
		"amount": tokens(500).String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(fmt.Sprintf("%s/v1/staking/%s", server.URL, admin.Hex()))
	require.NoError(t, err)
	body := decode(t, resp)
	require.Equal(t, tokens(500).String(), body["stakedBalance"])
	require.Equal(t, "0", body["pendingReward"])

	resp = postJSON(t, server.URL+"/v1/staking/withdraw", map[string]string{
		"staker": admin.Hex(),
		"amount": tokens(200).String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/v1/staking/claim", map[string]string{
		"principal": admin.Hex(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	nativecommon "nuchain/native/common"
	"nuchain/native/liquidity"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, nativecommon.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, liquidity.ErrPoolNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// parseAmount reads a decimal token amount, bounding it to 256 bits before
// converting to the big.Int the engines consume.
func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("amount required")
	}
	parsed, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return parsed.ToBig(), nil
}

func parseAddress(raw, field string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Service) pool(r *http.Request) (*liquidity.Pool, error) {
	addr, err := parseAddress(chi.URLParam(r, "stablecoin"), "stablecoin")
	if err != nil {
		return nil, err
	}
	return s.factory.Pool(addr)
}

func (s *Service) handleStablecoinStatus(w http.ResponseWriter, _ *http.Request) {
	ledger := s.stablecoin.Ledger()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            ledger.Name(),
		"symbol":          ledger.Symbol(),
		"totalSupply":     s.stablecoin.TotalSupply().String(),
		"maxSupply":       s.stablecoin.MaxSupplyCap().String(),
		"balanceReserves": s.stablecoin.BalanceReserves().String(),
		"reserveRatio":    s.stablecoin.ReserveRatio().String(),
		"paused":          ledger.Paused(),
	})
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"), "account")
	if err != nil {
		writeError(w, err)
		return
	}
	ledger := s.stablecoin.Ledger()
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr.Hex(),
		"balance": ledger.BalanceOf(addr).String(),
		"frozen":  ledger.IsFrozen(addr),
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Service) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress(req.From, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.stablecoin.Ledger().Transfer(from, to, amount); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveTransfer(s.stablecoin.Ledger().Symbol())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type mintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Service) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.stablecoin.Mint(caller, to, amount); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveMint()
	s.metrics.SetTotalSupply(s.stablecoin.TotalSupply())
	s.metrics.SetReserveCounter(s.stablecoin.BalanceReserves())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type burnRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Service) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.stablecoin.Burn(caller, amount); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveBurn()
	s.metrics.SetTotalSupply(s.stablecoin.TotalSupply())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleLatestReserve(w http.ResponseWriter, _ *http.Request) {
	record, err := s.auditor.LatestReserve()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reserveAmount": record.ReserveAmount.String(),
		"timestamp":     record.Timestamp,
		"count":         s.auditor.Count(),
	})
}

type recordReserveRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Service) handleRecordReserve(w http.ResponseWriter, r *http.Request) {
	var req recordReserveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.auditor.RecordReserve(caller, amount); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveAttestation()
	s.metrics.SetAttestedReserve(amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(r)
	if err != nil {
		writeError(w, err)
		return
	}
	usdnReserve, stableReserve := pool.Reserves()
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":              pool.Address().Hex(),
		"stablecoin":        pool.StablecoinAddress().Hex(),
		"reserveUsdn":       usdnReserve.String(),
		"reserveStablecoin": stableReserve.String(),
		"totalLiquidity":    pool.TotalLiquidity().String(),
		"tradingFeeBps":     s.factory.TradingFeeBps(),
		"paused":            s.factory.IsPaused(),
	})
}

type liquidityRequest struct {
	Provider         string `json:"provider"`
	AmountUSDN       string `json:"amountUsdn"`
	AmountStablecoin string `json:"amountStablecoin"`
}

func (s *Service) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	s.handleLiquidityChange(w, r, true)
}

func (s *Service) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	s.handleLiquidityChange(w, r, false)
}

func (s *Service) handleLiquidityChange(w http.ResponseWriter, r *http.Request, add bool) {
	pool, err := s.pool(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req liquidityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	provider, err := parseAddress(req.Provider, "provider")
	if err != nil {
		writeError(w, err)
		return
	}
	amountUSDN, err := parseAmount(req.AmountUSDN)
	if err != nil {
		writeError(w, err)
		return
	}
	amountStable, err := parseAmount(req.AmountStablecoin)
	if err != nil {
		writeError(w, err)
		return
	}
	if add {
		err = pool.AddLiquidity(provider, amountUSDN, amountStable)
	} else {
		err = pool.RemoveLiquidity(provider, amountUSDN, amountStable)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type swapRequest struct {
	Trader   string `json:"trader"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	AmountIn string `json:"amountIn"`
}

func (s *Service) handleSwap(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	trader, err := parseAddress(req.Trader, "trader")
	if err != nil {
		writeError(w, err)
		return
	}
	tokenIn, err := parseAddress(req.TokenIn, "tokenIn")
	if err != nil {
		writeError(w, err)
		return
	}
	tokenOut, err := parseAddress(req.TokenOut, "tokenOut")
	if err != nil {
		writeError(w, err)
		return
	}
	amountIn, err := parseAmount(req.AmountIn)
	if err != nil {
		writeError(w, err)
		return
	}
	amountOut, err := pool.Swap(trader, tokenIn, tokenOut, amountIn)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveSwap(tokenIn.Hex())
	writeJSON(w, http.StatusOK, map[string]string{"amountOut": amountOut.String()})
}

type claimRequest struct {
	Principal string `json:"principal"`
}

func (s *Service) handlePoolClaim(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pool(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	provider, err := parseAddress(req.Principal, "principal")
	if err != nil {
		writeError(w, err)
		return
	}
	reward, err := pool.ClaimReward(provider)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveRewardClaim("liquidity")
	writeJSON(w, http.StatusOK, map[string]string{"reward": reward.String()})
}

func (s *Service) handleStakeStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"), "staker")
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := s.vault.ViewPendingReward(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":       addr.Hex(),
		"stakedBalance": s.vault.StakedBalance(addr).String(),
		"pendingReward": pending.String(),
		"totalStaked":   s.vault.TotalStaked().String(),
	})
}

type stakeRequest struct {
	Staker string `json:"staker"`
	Amount string `json:"amount"`
}

func (s *Service) handleStake(w http.ResponseWriter, r *http.Request) {
	s.handleStakeChange(w, r, true)
}

func (s *Service) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleStakeChange(w, r, false)
}

func (s *Service) handleStakeChange(w http.ResponseWriter, r *http.Request, stake bool) {
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	staker, err := parseAddress(req.Staker, "staker")
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if stake {
		err = s.vault.Stake(staker, amount)
	} else {
		err = s.vault.Withdraw(staker, amount)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if stake {
		s.metrics.ObserveStake()
	} else {
		s.metrics.ObserveStakeWithdrawal()
	}
	s.metrics.SetTotalStaked(s.vault.TotalStaked())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleStakeClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	staker, err := parseAddress(req.Principal, "principal")
	if err != nil {
		writeError(w, err)
		return
	}
	reward, err := s.vault.ClaimReward(staker)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveRewardClaim("staking")
	writeJSON(w, http.StatusOK, map[string]string{"reward": reward.String()})
}

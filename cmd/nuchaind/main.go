package main

import (
	"context"
	"errors"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nuchain/config"
	"nuchain/gateway"
	"nuchain/gateway/middleware"
	"nuchain/native/auditor"
	nativecommon "nuchain/native/common"
	"nuchain/native/liquidity"
	"nuchain/native/stablecoin"
	"nuchain/native/staking"
	"nuchain/native/token"
	"nuchain/observability/logging"
	"nuchain/observability/metrics"
	"nuchain/storage"
)

// Well-known module custody addresses. These are synthetic identities on the
// internal ledgers, not externally owned accounts.
var (
	stablecoinAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	pairedTokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	poolAddr        = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	vaultAddr       = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to node configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NUCHAIN_ENV"))
	logger := logging.Setup("nuchaind", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "auditor"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	adminAddr := cfg.AdminAddress()
	roles := nativecommon.NewRoleSet(adminAddr)

	aud, err := auditor.New(db, roles)
	if err != nil {
		logger.Error("construct auditor", "error", err)
		os.Exit(1)
	}

	controller, err := stablecoin.New(stablecoin.Config{
		DefaultAdmin:   adminAddr,
		TokenAddress:   stablecoinAddr,
		TreasuryWallet: cfg.TreasuryAddress(),
		Auditor:        aud,
		Authorizer:     roles,
	})
	if err != nil {
		logger.Error("construct stablecoin", "error", err)
		os.Exit(1)
	}
	if err := aud.SetStableCoinAddress(adminAddr, stablecoinAddr); err != nil {
		logger.Error("point auditor at stablecoin", "error", err)
		os.Exit(1)
	}
	if cfg.TransactionFeeBps > 0 {
		if err := controller.SetTransactionFee(adminAddr, cfg.TransactionFeeBps); err != nil {
			logger.Error("apply transaction fee", "error", err)
			os.Exit(1)
		}
	}
	if cfg.TransactionFeeEnabled {
		if err := controller.SetTransactionFeeEnabled(adminAddr, true); err != nil {
			logger.Error("enable transaction fee", "error", err)
			os.Exit(1)
		}
	}

	factory := liquidity.NewFactory(controller.Ledger(), roles)
	if cfg.TradingFeeBps > 0 {
		if err := factory.UpdateTradingFee(adminAddr, cfg.TradingFeeBps); err != nil {
			logger.Error("apply trading fee", "error", err)
			os.Exit(1)
		}
	}
	if rate := strings.TrimSpace(cfg.RewardRate); rate != "" {
		parsed, ok := new(big.Int).SetString(rate, 10)
		if !ok {
			logger.Error("parse reward rate", "value", rate)
			os.Exit(1)
		}
		if err := factory.UpdateRewardRate(adminAddr, parsed); err != nil {
			logger.Error("apply reward rate", "error", err)
			os.Exit(1)
		}
	}
	if cfg.RewardPeriodDays > 0 {
		if err := factory.UpdateRewardPeriod(adminAddr, cfg.RewardPeriodDays); err != nil {
			logger.Error("apply reward period", "error", err)
			os.Exit(1)
		}
	}

	partner := token.NewLedger(cfg.PairedTokenName, cfg.PairedTokenSymbol, pairedTokenAddr)
	if _, err := factory.CreatePool(adminAddr, poolAddr, partner); err != nil {
		logger.Error("create liquidity pool", "error", err)
		os.Exit(1)
	}
	logger.Info("liquidity pool created",
		"pool", poolAddr.Hex(),
		"stablecoin", pairedTokenAddr.Hex(),
		"symbol", partner.Symbol(),
	)

	vault := staking.NewVault(controller.Ledger(), vaultAddr, roles)

	econ := metrics.Economy()
	econ.SetTotalSupply(controller.TotalSupply())
	econ.SetReserveCounter(controller.BalanceReserves())

	svc := gateway.NewService(gateway.Config{
		Stablecoin: controller,
		Auditor:    aud,
		Factory:    factory,
		Vault:      vault,
		Logger:     logger,
		Metrics:    econ,
	})
	handler := svc.Router(middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	}
}

package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nuchain/gateway/middleware"
	"nuchain/native/auditor"
	"nuchain/native/liquidity"
	"nuchain/native/stablecoin"
	"nuchain/native/staking"
	"nuchain/observability/metrics"
)

// Config carries the engines the gateway fronts plus its HTTP policy knobs.
type Config struct {
	Stablecoin *stablecoin.Controller
	Auditor    *auditor.Auditor
	Factory    *liquidity.Factory
	Vault      *staking.Vault

	Logger  *slog.Logger
	Metrics *metrics.EconomyMetrics
}

// Service exposes the token economy over HTTP. Callers are identified by the
// addresses in their request bodies; the gateway is an operator surface, not
// a signature-verifying public endpoint.
type Service struct {
	stablecoin *stablecoin.Controller
	auditor    *auditor.Auditor
	factory    *liquidity.Factory
	vault      *staking.Vault
	logger     *slog.Logger
	metrics    *metrics.EconomyMetrics
}

// NewService wires the engine set into a service instance.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stablecoin: cfg.Stablecoin,
		auditor:    cfg.Auditor,
		factory:    cfg.Factory,
		vault:      cfg.Vault,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Router assembles the chi handler: health, metrics and the versioned economy
// surface behind rate limiting and request-ID logging.
func (s *Service) Router(limit middleware.RateLimit) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(s.logger))
	r.Use(middleware.NewRateLimiter(limit).Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/stablecoin", func(sc chi.Router) {
			sc.Get("/", s.handleStablecoinStatus)
			sc.Get("/balance/{address}", s.handleBalance)
			sc.Post("/transfer", s.handleTransfer)
			sc.Post("/mint", s.handleMint)
			sc.Post("/burn", s.handleBurn)
		})
		v1.Route("/auditor", func(au chi.Router) {
			au.Get("/latest", s.handleLatestReserve)
			au.Post("/record", s.handleRecordReserve)
		})
		v1.Route("/pools", func(pl chi.Router) {
			pl.Route("/{stablecoin}", func(pool chi.Router) {
				pool.Get("/", s.handlePoolStatus)
				pool.Post("/add", s.handleAddLiquidity)
				pool.Post("/remove", s.handleRemoveLiquidity)
				pool.Post("/swap", s.handleSwap)
				pool.Post("/claim", s.handlePoolClaim)
			})
		})
		v1.Route("/staking", func(st chi.Router) {
			st.Get("/{address}", s.handleStakeStatus)
			st.Post("/stake", s.handleStake)
			st.Post("/withdraw", s.handleWithdraw)
			st.Post("/claim", s.handleStakeClaim)
		})
	})

	return r
}

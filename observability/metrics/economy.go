package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EconomyMetrics exposes the token economy's operational counters and the
// gauges operators alert on (supply, reserve counter, staked principal).
type EconomyMetrics struct {
	transfers      *prometheus.CounterVec
	mints          prometheus.Counter
	burns          prometheus.Counter
	swaps          *prometheus.CounterVec
	stakes         prometheus.Counter
	withdrawals    prometheus.Counter
	rewardsClaimed *prometheus.CounterVec
	attestations   prometheus.Counter

	totalSupply     prometheus.Gauge
	reserveCounter  prometheus.Gauge
	attestedReserve prometheus.Gauge
	totalStaked     prometheus.Gauge
}

var (
	economyOnce     sync.Once
	economyRegistry *EconomyMetrics
)

// Economy returns the process-wide economy metrics, registering them on first
// use.
func Economy() *EconomyMetrics {
	economyOnce.Do(func() {
		economyRegistry = &EconomyMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "economy_transfers_total",
				Help: "Count of token transfers by token symbol.",
			}, []string{"token"}),
			mints: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "economy_mints_total",
				Help: "Count of stablecoin mint operations.",
			}),
			burns: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "economy_burns_total",
				Help: "Count of stablecoin burn operations.",
			}),
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "economy_swaps_total",
				Help: "Count of pool swaps by input token.",
			}, []string{"token_in"}),
			stakes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "economy_stakes_total",
				Help: "Count of staking deposits.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "economy_stake_withdrawals_total",
				Help: "Count of staking withdrawals.",
			}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "economy_rewards_claimed_total",
				Help: "Count of reward claims by module.",
			}, []string{"module"}),
			attestations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "economy_reserve_attestations_total",
				Help: "Count of reserve attestations recorded by the auditor.",
			}),
			totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "economy_stablecoin_supply",
				Help: "Circulating stablecoin supply in whole tokens.",
			}),
			reserveCounter: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "economy_reserve_counter",
				Help: "Internal mintable reserve counter in whole tokens.",
			}),
			attestedReserve: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "economy_attested_reserve",
				Help: "Latest externally attested reserve in whole tokens.",
			}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "economy_total_staked",
				Help: "Aggregate staked principal in whole tokens.",
			}),
		}
		prometheus.MustRegister(
			economyRegistry.transfers,
			economyRegistry.mints,
			economyRegistry.burns,
			economyRegistry.swaps,
			economyRegistry.stakes,
			economyRegistry.withdrawals,
			economyRegistry.rewardsClaimed,
			economyRegistry.attestations,
			economyRegistry.totalSupply,
			economyRegistry.reserveCounter,
			economyRegistry.attestedReserve,
			economyRegistry.totalStaked,
		)
	})
	return economyRegistry
}

func (m *EconomyMetrics) ObserveTransfer(token string) {
	if m == nil {
		return
	}
	if token == "" {
		token = "unknown"
	}
	m.transfers.WithLabelValues(token).Inc()
}

func (m *EconomyMetrics) ObserveMint() {
	if m == nil {
		return
	}
	m.mints.Inc()
}

func (m *EconomyMetrics) ObserveBurn() {
	if m == nil {
		return
	}
	m.burns.Inc()
}

func (m *EconomyMetrics) ObserveSwap(tokenIn string) {
	if m == nil {
		return
	}
	if tokenIn == "" {
		tokenIn = "unknown"
	}
	m.swaps.WithLabelValues(tokenIn).Inc()
}

func (m *EconomyMetrics) ObserveStake() {
	if m == nil {
		return
	}
	m.stakes.Inc()
}

func (m *EconomyMetrics) ObserveStakeWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *EconomyMetrics) ObserveRewardClaim(module string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	m.rewardsClaimed.WithLabelValues(module).Inc()
}

func (m *EconomyMetrics) ObserveAttestation() {
	if m == nil {
		return
	}
	m.attestations.Inc()
}

func (m *EconomyMetrics) SetTotalSupply(v *big.Int) {
	if m == nil {
		return
	}
	m.totalSupply.Set(wholeTokens(v))
}

func (m *EconomyMetrics) SetReserveCounter(v *big.Int) {
	if m == nil {
		return
	}
	m.reserveCounter.Set(wholeTokens(v))
}

func (m *EconomyMetrics) SetAttestedReserve(v *big.Int) {
	if m == nil {
		return
	}
	m.attestedReserve.Set(wholeTokens(v))
}

func (m *EconomyMetrics) SetTotalStaked(v *big.Int) {
	if m == nil {
		return
	}
	m.totalStaked.Set(wholeTokens(v))
}

var tokenUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func wholeTokens(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(v), tokenUnit).Float64()
	return out
}

package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultAppLogPath        = "/data/logs/quorum.log"
	defaultAppJournalPath    = "/data/logs/quorum-journal.log"
	defaultStorePath         = "/data/db/quorum.db"
	defaultHistoryPath       = "/data/db/quorum-history.db"
	defaultSeedPath          = "configs/strategies.yaml"
	defaultReserveFloor      = 15000
	defaultConcentrationCap  = 0.10
	defaultInitialCash       = 50000
	defaultInitialTimeDelta  = 1
	defaultTimeDeltaStep     = 0.01
	defaultStopLossPct       = 0.03
	defaultTakeProfitPct     = 0.05
	defaultBaselineValue     = 50491.13
	defaultSettleDelay       = 5
	defaultCoefficientsPath  = "configs/coefficients.yaml"
	defaultActiveInterval    = 60
	defaultQuietInterval     = 30
	defaultTimezone          = "America/New_York"
	defaultRetryAttempts     = 5
	defaultRetryMinDelayMs   = 500
	defaultRetryMaxDelayMs   = 10000
	defaultRetryFactor       = 2
	defaultDataSource        = "binance"
	defaultStatusSource      = "clock"
	defaultHistoryLimit      = 300
	defaultUniverseSource    = "static"
	defaultBinanceREST       = "https://api.binance.com"
	defaultBinanceQuote      = "USDT"
	defaultHTTPTimeout       = 15
	defaultAlpacaTradingURL  = "https://paper-api.alpaca.markets"
	defaultAlpacaDataURL     = "https://data.alpaca.markets"
	defaultPolygonURL        = "https://api.polygon.io"
	defaultBrokerKind        = "paper"
	defaultPaperCash         = 50000
)

var defaultReservedStrategies = []string{"test", "test_strategy"}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Strategies.applyDefaults(keys)
	c.Simulation.applyDefaults(keys)
	c.Live.applyDefaults(keys)
	c.Ranking.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
	c.Retry.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.journal_path", &a.JournalPath, defaultAppJournalPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		stringFieldDefault("store.history_path", &s.HistoryPath, defaultHistoryPath),
	)
}

func (s *StrategiesConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:  "strategies.reserved",
			need: func() bool { return len(s.Reserved) == 0 },
			apply: func() {
				s.Reserved = append([]string(nil), defaultReservedStrategies...)
			},
		},
		stringFieldDefault("strategies.seed_path", &s.SeedPath, defaultSeedPath),
	)
}

func (s *SimulationConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("simulation.reserve_floor", &s.ReserveFloor, defaultReserveFloor),
		floatFieldDefault("simulation.concentration_cap", &s.ConcentrationCap, defaultConcentrationCap),
		floatFieldDefault("simulation.initial_cash", &s.InitialCash, defaultInitialCash),
		floatFieldDefault("simulation.initial_time_delta", &s.InitialTimeDelta, defaultInitialTimeDelta),
		floatFieldDefault("simulation.time_delta_step", &s.TimeDeltaStep, defaultTimeDeltaStep),
	)
}

func (l *LiveConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("live.reserve_floor", &l.ReserveFloor, defaultReserveFloor),
		floatFieldDefault("live.concentration_cap", &l.ConcentrationCap, defaultConcentrationCap),
		floatFieldDefault("live.stop_loss_pct", &l.StopLossPct, defaultStopLossPct),
		floatFieldDefault("live.take_profit_pct", &l.TakeProfitPct, defaultTakeProfitPct),
		floatFieldDefault("live.baseline_value", &l.BaselineValue, defaultBaselineValue),
		intFieldDefault("live.settle_delay_seconds", &l.SettleDelaySeconds, defaultSettleDelay),
	)
}

func (r *RankingConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ranking.coefficients_path", &r.CoefficientsPath, defaultCoefficientsPath),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("schedule.active_interval_seconds", &s.ActiveIntervalSeconds, defaultActiveInterval),
		intFieldDefault("schedule.quiet_interval_seconds", &s.QuietIntervalSeconds, defaultQuietInterval),
		stringFieldDefault("schedule.timezone", &s.Timezone, defaultTimezone),
	)
}

func (r *RetryConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("retry.max_attempts", &r.MaxAttempts, defaultRetryAttempts),
		intFieldDefault("retry.min_delay_ms", &r.MinDelayMs, defaultRetryMinDelayMs),
		intFieldDefault("retry.max_delay_ms", &r.MaxDelayMs, defaultRetryMaxDelayMs),
		floatFieldDefault("retry.factor", &r.Factor, defaultRetryFactor),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.data_source", &m.DataSource, defaultDataSource),
		stringFieldDefault("market.status_source", &m.StatusSource, defaultStatusSource),
		intFieldDefault("market.history_limit", &m.HistoryLimit, defaultHistoryLimit),
		stringFieldDefault("market.universe.source", &m.Universe.Source, defaultUniverseSource),
		stringFieldDefault("market.binance.rest_base_url", &m.Binance.RESTBaseURL, defaultBinanceREST),
		stringFieldDefault("market.binance.quote_asset", &m.Binance.QuoteAsset, defaultBinanceQuote),
		intFieldDefault("market.binance.timeout_seconds", &m.Binance.TimeoutSeconds, defaultHTTPTimeout),
		stringFieldDefault("market.alpaca.trading_url", &m.Alpaca.TradingURL, defaultAlpacaTradingURL),
		stringFieldDefault("market.alpaca.data_url", &m.Alpaca.DataURL, defaultAlpacaDataURL),
		intFieldDefault("market.alpaca.timeout_seconds", &m.Alpaca.TimeoutSeconds, defaultHTTPTimeout),
		stringFieldDefault("market.polygon.base_url", &m.Polygon.BaseURL, defaultPolygonURL),
	)
	m.DataSource = strings.ToLower(strings.TrimSpace(m.DataSource))
	m.StatusSource = strings.ToLower(strings.TrimSpace(m.StatusSource))
	m.Universe.Source = strings.ToLower(strings.TrimSpace(m.Universe.Source))
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("broker.kind", &b.Kind, defaultBrokerKind),
		floatFieldDefault("broker.paper_cash", &b.PaperCash, defaultPaperCash),
	)
	b.Kind = strings.ToLower(strings.TrimSpace(b.Kind))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

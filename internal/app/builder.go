package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	brcfg "quorum/internal/config"
	"quorum/internal/coefficient"
	"quorum/internal/gateway"
	"quorum/internal/gateway/alpaca"
	"quorum/internal/gateway/notifier"
	"quorum/internal/ledger"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/orchestrator"
	"quorum/internal/ranking"
	"quorum/internal/risk"
	"quorum/internal/scheduler"
	"quorum/internal/seed"
	"quorum/internal/store"
	"quorum/internal/store/history"
	"quorum/internal/store/sqlite"
	"quorum/internal/strategy"
	livehttp "quorum/internal/transport/http/live"
)

// MarketStack 汇总行情相关的外部依赖。
type MarketStack struct {
	Prices   market.PriceOracle
	History  market.HistoryProvider
	Status   market.StatusOracle
	Universe market.UniverseProvider
	Cache    market.SeriesCache
	Alpaca   *alpaca.Client
}

type AppBuilder struct {
	cfg *brcfg.Config

	storeFn       func(brcfg.StoreConfig) (store.Store, error)
	cacheFn       func(brcfg.StoreConfig) (market.SeriesCache, error)
	registryFn    func(brcfg.StrategiesConfig) (*strategy.Registry, error)
	marketStackFn func(*brcfg.Config, market.SeriesCache) (*MarketStack, error)
	brokerFn      func(*brcfg.Config, store.Store, market.PriceOracle, *alpaca.Client) (risk.Broker, error)
	notifierFn    func(brcfg.TelegramConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

// WithStore 用给定存储替换 sqlite（测试用）。
func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(brcfg.StoreConfig) (store.Store, error) { return st, nil }
	}
}

// WithMarketStack 替换行情依赖（测试用）。
func WithMarketStack(ms *MarketStack) AppBuilderOption {
	return func(b *AppBuilder) {
		b.marketStackFn = func(*brcfg.Config, market.SeriesCache) (*MarketStack, error) { return ms, nil }
	}
}

func WithRegistry(reg *strategy.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.registryFn = func(brcfg.StrategiesConfig) (*strategy.Registry, error) { return reg, nil }
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		storeFn:       openStore,
		cacheFn:       openSeriesCache,
		registryFn:    loadRegistry,
		marketStackFn: buildMarketStack,
		brokerFn:      gateway.NewBrokerFromConfig,
		notifierFn:    buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func openStore(cfg brcfg.StoreConfig) (store.Store, error) {
	return sqlite.NewSqliteStore(cfg.Path)
}

func openSeriesCache(cfg brcfg.StoreConfig) (market.SeriesCache, error) {
	if strings.TrimSpace(cfg.HistoryPath) == "" {
		return history.NewMemoryCache(), nil
	}
	return history.NewSQLiteCache(cfg.HistoryPath)
}

func loadRegistry(cfg brcfg.StrategiesConfig) (*strategy.Registry, error) {
	return strategy.Builtins().Only(cfg.EnabledSet())
}

func buildMarketStack(cfg *brcfg.Config, cache market.SeriesCache) (*MarketStack, error) {
	ac, err := gateway.NewAlpacaClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("alpaca client: %w", err)
	}
	src, err := gateway.NewDataSourceFromConfig(cfg, ac)
	if err != nil {
		return nil, err
	}
	status, err := gateway.NewStatusOracleFromConfig(cfg, ac)
	if err != nil {
		return nil, err
	}
	universe, err := gateway.NewUniverseFromConfig(cfg, ac)
	if err != nil {
		return nil, err
	}
	return &MarketStack{
		Prices:   gateway.NewPriceOracle(cfg, src),
		History:  gateway.NewHistoryProvider(cfg, src, cache),
		Status:   status,
		Universe: universe,
		Cache:    cache,
		Alpaca:   ac,
	}, nil
}

func buildNotifier(cfg brcfg.TelegramConfig) notifier.TextNotifier {
	if !cfg.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(cfg.BotToken, cfg.ChatID)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	st, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, st)

	cache, err := b.cacheFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open history cache: %w", err)
	}
	if c, isCloser := cache.(interface{ Close() error }); isCloser {
		a.closers = append(a.closers, c)
	}

	reg, err := b.registryFn(cfg.Strategies)
	if err != nil {
		return nil, fmt.Errorf("strategy registry: %w", err)
	}
	logger.Infof("✓ 已加载 %d 个策略: %v", reg.Len(), reg.IDs())

	ms, err := b.marketStackFn(cfg, cache)
	if err != nil {
		return nil, err
	}

	seedFile, err := seed.Load(cfg.Strategies.SeedPath)
	if err != nil {
		return nil, err
	}
	report, err := seed.NewSeeder(st, ms.History, seedFile, cfg.Simulation).Seed(ctx, reg.IDs())
	if err != nil {
		return nil, err
	}

	sim := cfg.Simulation
	policy := gateway.RetryPolicy(cfg.Retry)
	ledgers := ledger.NewService(st, ledger.Limits{
		ReserveFloor:     brcfg.Dec(sim.ReserveFloor),
		ConcentrationCap: brcfg.Dec(sim.ConcentrationCap),
	}, policy)

	reserved := cfg.Strategies.ReservedSet()
	curve, err := coefficient.NewCurve(ctx, cfg.Ranking.CoefficientsPath, st)
	if err != nil {
		return nil, err
	}
	weights := coefficient.NewWeights(st, coefficient.NewStoreMapper(st), reserved)
	curve.OnChange(func(coefficient.CurveSnapshot) {
		if err := weights.Refresh(context.Background()); err != nil {
			logger.Warnf("刷新策略权重失败: %v", err)
		}
	})
	engine := ranking.NewEngine(st, ledgers, ms.Prices, ms.Cache, reserved)

	var dispatcher *risk.Dispatcher
	if cfg.Live.Enabled {
		broker, err := b.brokerFn(cfg, st, ms.Prices, ms.Alpaca)
		if err != nil {
			return nil, fmt.Errorf("broker: %w", err)
		}
		dispatcher = risk.NewDispatcher(risk.ConfigFrom(cfg.Live), broker, st, b.notifierFn(cfg.Notify.Telegram))
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	orch := orchestrator.New(orchestrator.Deps{
		Strategies:     reg,
		Reserved:       reserved,
		Prices:         ms.Prices,
		History:        ms.History,
		Status:         ms.Status,
		Universe:       ms.Universe,
		Store:          st,
		Ledgers:        ledgers,
		Ranking:        engine,
		Weights:        weights,
		Live:           dispatcher,
		TimeDeltaStep:  brcfg.Dec(sim.TimeDeltaStep),
		ActiveInterval: cfg.Schedule.ActiveInterval(),
		QuietInterval:  cfg.Schedule.QuietInterval(),
		Location:       loc,
	})

	cron, err := scheduler.NewEpochCron(cfg.Ranking.Cron, loc, orch.RequestEpoch)
	if err != nil {
		return nil, err
	}

	var srv *livehttp.Server
	if strings.TrimSpace(cfg.App.HTTPAddr) != "" {
		srv, err = livehttp.NewServer(livehttp.ServerConfig{
			Addr:    cfg.App.HTTPAddr,
			Store:   st,
			Cycles:  orch,
			Weights: weights,
		})
		if err != nil {
			return nil, err
		}
	}

	a.orch = orch
	a.http = srv
	a.cron = cron
	a.curve = curve
	a.Summary = &StartupSummary{
		Env:          cfg.App.Env,
		Strategies:   reg.IDs(),
		Reserved:     cfg.Strategies.Reserved,
		DataSource:   cfg.Market.DataSource,
		StatusSource: cfg.Market.StatusSource,
		Universe:     cfg.Market.Universe,
		LiveEnabled:  dispatcher != nil,
		BrokerKind:   cfg.Broker.Kind,
		EpochCron:    cfg.Ranking.Cron,
		NextEpoch:    cron.Next(),
		HTTPAddr:     cfg.App.HTTPAddr,
		Seeded:       report,
		Curve:        curve.Snapshot(),
	}
	ok = true
	return a, nil
}

package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config 是 quorum 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Store      StoreConfig      `toml:"store"`
	Strategies StrategiesConfig `toml:"strategies"`
	Simulation SimulationConfig `toml:"simulation"`
	Live       LiveConfig       `toml:"live"`
	Ranking    RankingConfig    `toml:"ranking"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	Retry      RetryConfig      `toml:"retry"`
	Market     MarketConfig     `toml:"market"`
	Broker     BrokerConfig     `toml:"broker"`
	Notify     NotifyConfig     `toml:"notify"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	HTTPAddr    string `toml:"http_addr"`
	LogPath     string `toml:"log_path"`
	JournalPath string `toml:"journal_path"`
}

// StoreConfig 描述账本库与历史数据缓存库的位置。
type StoreConfig struct {
	Path        string `toml:"path"`
	HistoryPath string `toml:"history_path"`
}

// StrategiesConfig 控制参与模拟的策略集合。
type StrategiesConfig struct {
	Reserved []string `toml:"reserved"` // 测试用策略，不参与排名与实盘权重
	Enabled  []string `toml:"enabled"`  // 为空表示启用注册表中的全部策略
	SeedPath string   `toml:"seed_path"`
}

// SimulationConfig 是模拟账本的风控与积分参数。
type SimulationConfig struct {
	ReserveFloor     float64 `toml:"reserve_floor"`
	ConcentrationCap float64 `toml:"concentration_cap"`
	InitialCash      float64 `toml:"initial_cash"`
	InitialTimeDelta float64 `toml:"initial_time_delta"`
	TimeDeltaStep    float64 `toml:"time_delta_step"`
}

// LiveConfig 是实盘账户的风控参数。
type LiveConfig struct {
	Enabled                   bool    `toml:"enabled"`
	ReserveFloor              float64 `toml:"reserve_floor"`
	ConcentrationCap          float64 `toml:"concentration_cap"`
	StopLossPct               float64 `toml:"stop_loss_pct"`
	TakeProfitPct             float64 `toml:"take_profit_pct"`
	BaselineValue             float64 `toml:"baseline_value"`
	SettleDelaySeconds        int     `toml:"settle_delay_seconds"`
	SuggestionWeightThreshold float64 `toml:"suggestion_weight_threshold"`
}

// SettleDelay 返回两笔排队买单之间的等待时间。
func (l LiveConfig) SettleDelay() time.Duration {
	return time.Duration(l.SettleDelaySeconds) * time.Second
}

type RankingConfig struct {
	Cron             string `toml:"cron"` // 为空表示只在收盘时排名
	CoefficientsPath string `toml:"coefficients_path"`
}

type ScheduleConfig struct {
	ActiveIntervalSeconds int    `toml:"active_interval_seconds"`
	QuietIntervalSeconds  int    `toml:"quiet_interval_seconds"`
	Timezone              string `toml:"timezone"`
}

func (s ScheduleConfig) ActiveInterval() time.Duration {
	return time.Duration(s.ActiveIntervalSeconds) * time.Second
}

func (s ScheduleConfig) QuietInterval() time.Duration {
	return time.Duration(s.QuietIntervalSeconds) * time.Second
}

// RetryConfig 控制价格/历史拉取的有界指数退避。
type RetryConfig struct {
	MaxAttempts int     `toml:"max_attempts"`
	MinDelayMs  int     `toml:"min_delay_ms"`
	MaxDelayMs  int     `toml:"max_delay_ms"`
	Factor      float64 `toml:"factor"`
}

type MarketConfig struct {
	DataSource   string         `toml:"data_source"`   // binance | alpaca
	StatusSource string         `toml:"status_source"` // clock | polygon | alpaca | always_open
	HistoryLimit int            `toml:"history_limit"`
	Universe     UniverseConfig `toml:"universe"`
	Binance      BinanceConfig  `toml:"binance"`
	Alpaca       AlpacaConfig   `toml:"alpaca"`
	Polygon      PolygonConfig  `toml:"polygon"`
}

type UniverseConfig struct {
	Source  string   `toml:"source"` // static | alpaca
	Symbols []string `toml:"symbols"`
}

type BinanceConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	QuoteAsset     string `toml:"quote_asset"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AlpacaConfig 同时服务行情、标的列表与下单。
type AlpacaConfig struct {
	TradingURL     string `toml:"trading_url"`
	DataURL        string `toml:"data_url"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PolygonConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type BrokerConfig struct {
	Kind      string  `toml:"kind"` // paper | alpaca
	PaperCash float64 `toml:"paper_cash"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// Dec 把配置中的浮点数转换为 decimal。
func Dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

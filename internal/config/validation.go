package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Simulation.validate(); err != nil {
		return err
	}
	if err := c.Live.validate(); err != nil {
		return err
	}
	if err := c.Ranking.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(c.Market); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	if strings.TrimSpace(s.HistoryPath) == "" {
		return fmt.Errorf("store.history_path cannot be empty")
	}
	return nil
}

func (s *SimulationConfig) validate() error {
	if s.ReserveFloor < 0 {
		return fmt.Errorf("simulation.reserve_floor must be >= 0")
	}
	if s.ConcentrationCap <= 0 || s.ConcentrationCap > 1 {
		return fmt.Errorf("simulation.concentration_cap must be in (0, 1]")
	}
	if s.TimeDeltaStep < 0 {
		return fmt.Errorf("simulation.time_delta_step must be >= 0")
	}
	return nil
}

func (l *LiveConfig) validate() error {
	if l.ReserveFloor < 0 {
		return fmt.Errorf("live.reserve_floor must be >= 0")
	}
	if l.ConcentrationCap <= 0 || l.ConcentrationCap > 1 {
		return fmt.Errorf("live.concentration_cap must be in (0, 1]")
	}
	if l.StopLossPct < 0 || l.StopLossPct >= 1 {
		return fmt.Errorf("live.stop_loss_pct must be in [0, 1)")
	}
	if l.TakeProfitPct < 0 {
		return fmt.Errorf("live.take_profit_pct must be >= 0")
	}
	if l.SettleDelaySeconds < 0 {
		return fmt.Errorf("live.settle_delay_seconds must be >= 0")
	}
	if l.SuggestionWeightThreshold < 0 {
		return fmt.Errorf("live.suggestion_weight_threshold must be >= 0")
	}
	return nil
}

func (r *RankingConfig) validate() error {
	spec := strings.TrimSpace(r.Cron)
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("ranking.cron invalid (%s): %w", spec, err)
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if s.ActiveIntervalSeconds <= 0 || s.QuietIntervalSeconds <= 0 {
		return fmt.Errorf("schedule intervals must be > 0")
	}
	return nil
}

func (r *RetryConfig) validate() error {
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if r.MaxDelayMs < r.MinDelayMs {
		return fmt.Errorf("retry.max_delay_ms must be >= retry.min_delay_ms")
	}
	if r.Factor < 1 {
		return fmt.Errorf("retry.factor must be >= 1")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.DataSource {
	case "binance", "alpaca":
	default:
		return fmt.Errorf("market.data_source only supports binance|alpaca, got %s", m.DataSource)
	}
	switch m.StatusSource {
	case "clock", "always_open", "alpaca":
	case "polygon":
		if strings.TrimSpace(m.Polygon.APIKey) == "" {
			return fmt.Errorf("market.polygon.api_key required when status_source=polygon")
		}
	default:
		return fmt.Errorf("market.status_source only supports clock|polygon|alpaca|always_open, got %s", m.StatusSource)
	}
	switch m.Universe.Source {
	case "static":
		if len(m.Universe.Symbols) == 0 {
			return fmt.Errorf("market.universe.symbols cannot be empty for static universe")
		}
	case "alpaca":
	default:
		return fmt.Errorf("market.universe.source only supports static|alpaca, got %s", m.Universe.Source)
	}
	if m.DataSource == "alpaca" || m.Universe.Source == "alpaca" || m.StatusSource == "alpaca" {
		if err := m.Alpaca.validate(); err != nil {
			return err
		}
	}
	if m.HistoryLimit <= 0 {
		return fmt.Errorf("market.history_limit must be > 0")
	}
	return nil
}

func (a *AlpacaConfig) validate() error {
	if strings.TrimSpace(a.APIKey) == "" || strings.TrimSpace(a.APISecret) == "" {
		return fmt.Errorf("market.alpaca requires api_key and api_secret")
	}
	return nil
}

func (b *BrokerConfig) validate(m MarketConfig) error {
	switch b.Kind {
	case "paper":
		if b.PaperCash <= 0 {
			return fmt.Errorf("broker.paper_cash must be > 0")
		}
	case "alpaca":
		return m.Alpaca.validate()
	default:
		return fmt.Errorf("broker.kind only supports paper|alpaca, got %s", b.Kind)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

// IsValidInterval 简易校验：以数字开头，以 m/h/d/w 结尾
func IsValidInterval(s string) bool {
	if s == "" {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

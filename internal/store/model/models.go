package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type StrategyLedgerModel struct {
	ID               int64           `gorm:"column:id;primaryKey"`
	StrategyID       string          `gorm:"column:strategy_id;uniqueIndex"`
	Cash             decimal.Decimal `gorm:"column:cash;type:TEXT"`
	PortfolioValue   decimal.Decimal `gorm:"column:portfolio_value;type:TEXT"`
	HoldingsJSON     datatypes.JSON  `gorm:"column:holdings;type:TEXT"`
	TotalTrades      int64           `gorm:"column:total_trades"`
	SuccessfulTrades int64           `gorm:"column:successful_trades"`
	FailedTrades     int64           `gorm:"column:failed_trades"`
	NeutralTrades    int64           `gorm:"column:neutral_trades"`
	Version          int64           `gorm:"column:version"`
	CreatedAtUnix    int64           `gorm:"column:created_at"`
	UpdatedAtUnix    int64           `gorm:"column:updated_at"`
}

func (StrategyLedgerModel) TableName() string { return "strategy_ledgers" }

type StrategyPointsModel struct {
	StrategyID    string          `gorm:"column:strategy_id;primaryKey"`
	TotalPoints   decimal.Decimal `gorm:"column:total_points;type:TEXT"`
	UpdatedAtUnix int64           `gorm:"column:updated_at"`
}

func (StrategyPointsModel) TableName() string { return "strategy_points" }

// TimeDeltaModel 只有 id=1 一行。
type TimeDeltaModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	Value         decimal.Decimal `gorm:"column:value;type:TEXT"`
	UpdatedAtUnix int64           `gorm:"column:updated_at"`
}

func (TimeDeltaModel) TableName() string { return "time_delta" }

type StrategyRankModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	StrategyID    string          `gorm:"column:strategy_id;uniqueIndex"`
	Rank          int             `gorm:"column:rank;index"`
	EpochID       string          `gorm:"column:epoch_id"`
	Score         decimal.Decimal `gorm:"column:score;type:TEXT"`
	CreatedAtUnix int64           `gorm:"column:created_at"`
}

func (StrategyRankModel) TableName() string { return "strategy_ranks" }

type RankCoefficientModel struct {
	Rank   int             `gorm:"column:rank;primaryKey;autoIncrement:false"`
	Weight decimal.Decimal `gorm:"column:weight;type:TEXT"`
}

func (RankCoefficientModel) TableName() string { return "rank_coefficients" }

type IdealPeriodModel struct {
	StrategyID string `gorm:"column:strategy_id;primaryKey"`
	Window     string `gorm:"column:window_interval"`
}

func (IdealPeriodModel) TableName() string { return "ideal_periods" }

type PositionLimitModel struct {
	Instrument      string          `gorm:"column:instrument;primaryKey"`
	StopLossPrice   decimal.Decimal `gorm:"column:stop_loss_price;type:TEXT"`
	TakeProfitPrice decimal.Decimal `gorm:"column:take_profit_price;type:TEXT"`
	UpdatedAtUnix   int64           `gorm:"column:updated_at"`
}

func (PositionLimitModel) TableName() string { return "position_limits" }

type LiveHoldingModel struct {
	Instrument    string          `gorm:"column:instrument;primaryKey"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:TEXT"`
	UpdatedAtUnix int64           `gorm:"column:updated_at"`
}

func (LiveHoldingModel) TableName() string { return "live_holdings" }

type LiveOrderModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	ClientOrderID string          `gorm:"column:client_order_id;uniqueIndex"`
	BrokerOrderID string          `gorm:"column:broker_order_id"`
	Instrument    string          `gorm:"column:instrument;index"`
	Side          string          `gorm:"column:side"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:TEXT"`
	Price         decimal.Decimal `gorm:"column:price;type:TEXT"`
	Reason        string          `gorm:"column:reason"`
	Status        string          `gorm:"column:status"`
	CreatedAtUnix int64           `gorm:"column:created_at"`
}

func (LiveOrderModel) TableName() string { return "live_orders" }

type PortfolioSnapshotModel struct {
	ID             int64           `gorm:"column:id;primaryKey"`
	Cash           decimal.Decimal `gorm:"column:cash;type:TEXT"`
	PortfolioValue decimal.Decimal `gorm:"column:portfolio_value;type:TEXT"`
	ReturnPct      decimal.Decimal `gorm:"column:return_pct;type:TEXT"`
	CreatedAtUnix  int64           `gorm:"column:created_at"`
}

func (PortfolioSnapshotModel) TableName() string { return "portfolio_snapshots" }

// All 返回需要自动迁移的模型。
func All() []interface{} {
	return []interface{}{
		&StrategyLedgerModel{},
		&StrategyPointsModel{},
		&TimeDeltaModel{},
		&StrategyRankModel{},
		&RankCoefficientModel{},
		&IdealPeriodModel{},
		&PositionLimitModel{},
		&LiveHoldingModel{},
		&LiveOrderModel{},
		&PortfolioSnapshotModel{},
	}
}

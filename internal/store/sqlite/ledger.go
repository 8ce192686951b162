package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quorum/internal/store/model"
	"quorum/internal/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerRepo implements the LedgerRepository interface.
type ledgerRepo struct {
	db *gorm.DB
}

// NewLedgerRepo creates a new ledgerRepo.
func NewLedgerRepo(db *gorm.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Get(ctx context.Context, strategyID string) (types.Ledger, error) {
	var row model.StrategyLedgerModel
	err := r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&row).Error
	if err != nil {
		return types.Ledger{}, notFound(err)
	}
	return ledgerFromModel(row)
}

func (r *ledgerRepo) List(ctx context.Context) ([]types.Ledger, error) {
	var rows []model.StrategyLedgerModel
	if err := r.db.WithContext(ctx).Order("strategy_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Ledger, 0, len(rows))
	for _, row := range rows {
		l, err := ledgerFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *ledgerRepo) Create(ctx context.Context, ledger types.Ledger) (bool, error) {
	if strings.TrimSpace(ledger.StrategyID) == "" {
		return false, errors.New("strategy id cannot be empty")
	}
	row, err := ledgerToModel(ledger)
	if err != nil {
		return false, err
	}
	now := nowUnix()
	row.Version = 0
	row.CreatedAtUnix = now
	row.UpdatedAtUnix = now
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ledgerRepo) CompareAndSwap(ctx context.Context, next types.Ledger, expected int64) (bool, error) {
	holdings, err := encodeHoldings(next.Holdings)
	if err != nil {
		return false, err
	}
	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&model.StrategyLedgerModel{}).
		Where("strategy_id = ? AND version = ?", next.StrategyID, expected).
		Updates(map[string]any{
			"cash":              next.Cash,
			"portfolio_value":   next.PortfolioValue,
			"holdings":          holdings,
			"total_trades":      next.Counters.Total,
			"successful_trades": next.Counters.Successful,
			"failed_trades":     next.Counters.Failed,
			"neutral_trades":    next.Counters.Neutral,
			"version":           expected + 1,
			"updated_at":        updatedAt.Unix(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func ledgerFromModel(row model.StrategyLedgerModel) (types.Ledger, error) {
	holdings := make(map[string]types.Holding)
	if len(row.HoldingsJSON) > 0 {
		if err := json.Unmarshal(row.HoldingsJSON, &holdings); err != nil {
			return types.Ledger{}, fmt.Errorf("decode holdings for %s: %w", row.StrategyID, err)
		}
	}
	return types.Ledger{
		StrategyID:     row.StrategyID,
		Cash:           row.Cash,
		PortfolioValue: row.PortfolioValue,
		Holdings:       holdings,
		Counters: types.TradeCounters{
			Total:      row.TotalTrades,
			Successful: row.SuccessfulTrades,
			Failed:     row.FailedTrades,
			Neutral:    row.NeutralTrades,
		},
		Version:   row.Version,
		UpdatedAt: unixTime(row.UpdatedAtUnix),
	}, nil
}

func ledgerToModel(l types.Ledger) (model.StrategyLedgerModel, error) {
	holdings, err := encodeHoldings(l.Holdings)
	if err != nil {
		return model.StrategyLedgerModel{}, err
	}
	return model.StrategyLedgerModel{
		StrategyID:       l.StrategyID,
		Cash:             l.Cash,
		PortfolioValue:   l.PortfolioValue,
		HoldingsJSON:     holdings,
		TotalTrades:      l.Counters.Total,
		SuccessfulTrades: l.Counters.Successful,
		FailedTrades:     l.Counters.Failed,
		NeutralTrades:    l.Counters.Neutral,
		Version:          l.Version,
	}, nil
}

func encodeHoldings(h map[string]types.Holding) (datatypes.JSON, error) {
	if h == nil {
		h = map[string]types.Holding{}
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode holdings: %w", err)
	}
	return datatypes.JSON(raw), nil
}

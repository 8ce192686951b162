package sqlite

import (
	"context"
	"errors"

	"quorum/internal/store/model"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type positionLimitRepo struct {
	db *gorm.DB
}

func NewPositionLimitRepo(db *gorm.DB) *positionLimitRepo {
	return &positionLimitRepo{db: db}
}

func (r *positionLimitRepo) Get(ctx context.Context, instrument string) (types.PositionLimit, error) {
	var row model.PositionLimitModel
	if err := r.db.WithContext(ctx).Where("instrument = ?", instrument).First(&row).Error; err != nil {
		return types.PositionLimit{}, notFound(err)
	}
	return limitFromModel(row), nil
}

func (r *positionLimitRepo) List(ctx context.Context) ([]types.PositionLimit, error) {
	var rows []model.PositionLimitModel
	if err := r.db.WithContext(ctx).Order("instrument ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.PositionLimit, 0, len(rows))
	for _, row := range rows {
		out = append(out, limitFromModel(row))
	}
	return out, nil
}

func (r *positionLimitRepo) Upsert(ctx context.Context, limit types.PositionLimit) error {
	row := model.PositionLimitModel{
		Instrument:      limit.Instrument,
		StopLossPrice:   limit.StopLossPrice,
		TakeProfitPrice: limit.TakeProfitPrice,
		UpdatedAtUnix:   nowUnix(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument"}},
		DoUpdates: clause.AssignmentColumns([]string{"stop_loss_price", "take_profit_price", "updated_at"}),
	}).Create(&row).Error
}

func (r *positionLimitRepo) Delete(ctx context.Context, instrument string) error {
	return r.db.WithContext(ctx).Where("instrument = ?", instrument).Delete(&model.PositionLimitModel{}).Error
}

func limitFromModel(row model.PositionLimitModel) types.PositionLimit {
	return types.PositionLimit{
		Instrument:      row.Instrument,
		StopLossPrice:   row.StopLossPrice,
		TakeProfitPrice: row.TakeProfitPrice,
	}
}

type liveHoldingRepo struct {
	db *gorm.DB
}

func NewLiveHoldingRepo(db *gorm.DB) *liveHoldingRepo {
	return &liveHoldingRepo{db: db}
}

func (r *liveHoldingRepo) Get(ctx context.Context, instrument string) (decimal.Decimal, error) {
	var row model.LiveHoldingModel
	err := r.db.WithContext(ctx).Where("instrument = ?", instrument).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Quantity, nil
}

func (r *liveHoldingRepo) List(ctx context.Context) ([]types.LiveHolding, error) {
	var rows []model.LiveHoldingModel
	if err := r.db.WithContext(ctx).Order("instrument ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.LiveHolding, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.LiveHolding{Instrument: row.Instrument, Quantity: row.Quantity})
	}
	return out, nil
}

// Adjust 调整持仓数量；结果 <= 0 时删除该行及其止损止盈记录。
func (r *liveHoldingRepo) Adjust(ctx context.Context, instrument string, delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := r.Get(ctx, instrument)
	if err != nil {
		return decimal.Zero, err
	}
	next := current.Add(delta)
	db := r.db.WithContext(ctx)
	if !next.IsPositive() {
		if err := db.Where("instrument = ?", instrument).Delete(&model.LiveHoldingModel{}).Error; err != nil {
			return decimal.Zero, err
		}
		if err := db.Where("instrument = ?", instrument).Delete(&model.PositionLimitModel{}).Error; err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, nil
	}
	row := model.LiveHoldingModel{Instrument: instrument, Quantity: next, UpdatedAtUnix: nowUnix()}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

package sqlite

import (
	"context"
	"errors"

	"quorum/internal/store"
	"quorum/internal/store/model"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pointsRepo struct {
	db *gorm.DB
}

func NewPointsRepo(db *gorm.DB) *pointsRepo {
	return &pointsRepo{db: db}
}

func (r *pointsRepo) Get(ctx context.Context, strategyID string) (types.PointsRecord, error) {
	var row model.StrategyPointsModel
	if err := r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&row).Error; err != nil {
		return types.PointsRecord{}, notFound(err)
	}
	return pointsFromModel(row), nil
}

func (r *pointsRepo) List(ctx context.Context) ([]types.PointsRecord, error) {
	var rows []model.StrategyPointsModel
	if err := r.db.WithContext(ctx).Order("strategy_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.PointsRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, pointsFromModel(row))
	}
	return out, nil
}

func (r *pointsRepo) Ensure(ctx context.Context, strategyID string, initial decimal.Decimal) error {
	row := model.StrategyPointsModel{
		StrategyID:    strategyID,
		TotalPoints:   initial,
		UpdatedAtUnix: nowUnix(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

// Add 读改写累计积分；调用方需在事务内调用以保证原子性。
func (r *pointsRepo) Add(ctx context.Context, strategyID string, delta decimal.Decimal) (decimal.Decimal, error) {
	db := r.db.WithContext(ctx)
	var row model.StrategyPointsModel
	err := db.Where("strategy_id = ?", strategyID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.StrategyPointsModel{StrategyID: strategyID, TotalPoints: delta, UpdatedAtUnix: nowUnix()}
		if err := db.Create(&row).Error; err != nil {
			return decimal.Zero, err
		}
		return delta, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	total := row.TotalPoints.Add(delta)
	res := db.Model(&model.StrategyPointsModel{}).
		Where("strategy_id = ?", strategyID).
		Updates(map[string]any{"total_points": total, "updated_at": nowUnix()})
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, store.ErrNotFound
	}
	return total, nil
}

func pointsFromModel(row model.StrategyPointsModel) types.PointsRecord {
	return types.PointsRecord{
		StrategyID:  row.StrategyID,
		TotalPoints: row.TotalPoints,
		UpdatedAt:   unixTime(row.UpdatedAtUnix),
	}
}

const timeDeltaRowID = 1

type timeDeltaRepo struct {
	db *gorm.DB
}

func NewTimeDeltaRepo(db *gorm.DB) *timeDeltaRepo {
	return &timeDeltaRepo{db: db}
}

func (r *timeDeltaRepo) Get(ctx context.Context) (decimal.Decimal, error) {
	var row model.TimeDeltaModel
	if err := r.db.WithContext(ctx).Where("id = ?", timeDeltaRowID).First(&row).Error; err != nil {
		return decimal.Zero, notFound(err)
	}
	return row.Value, nil
}

func (r *timeDeltaRepo) Ensure(ctx context.Context, initial decimal.Decimal) error {
	row := model.TimeDeltaModel{ID: timeDeltaRowID, Value: initial, UpdatedAtUnix: nowUnix()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row).Error
}

// Advance 将 TimeDelta 增加 step（负数按 0 处理，保证单调不减）。
func (r *timeDeltaRepo) Advance(ctx context.Context, step decimal.Decimal) (decimal.Decimal, error) {
	if step.IsNegative() {
		step = decimal.Zero
	}
	current, err := r.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	next := current.Add(step)
	res := r.db.WithContext(ctx).Model(&model.TimeDeltaModel{}).
		Where("id = ?", timeDeltaRowID).
		Updates(map[string]any{"value": next, "updated_at": nowUnix()})
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, store.ErrNotFound
	}
	return next, nil
}

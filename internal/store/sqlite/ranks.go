package sqlite

import (
	"context"

	"quorum/internal/store/model"
	"quorum/internal/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type rankRepo struct {
	db *gorm.DB
}

func NewRankRepo(db *gorm.DB) *rankRepo {
	return &rankRepo{db: db}
}

func (r *rankRepo) List(ctx context.Context) ([]types.RankRecord, error) {
	var rows []model.StrategyRankModel
	if err := r.db.WithContext(ctx).Order("rank ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.RankRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, rankFromModel(row))
	}
	return out, nil
}

func (r *rankRepo) Get(ctx context.Context, strategyID string) (types.RankRecord, error) {
	var row model.StrategyRankModel
	if err := r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&row).Error; err != nil {
		return types.RankRecord{}, notFound(err)
	}
	return rankFromModel(row), nil
}

// Replace 删除全部旧排名后写入新集合；需在事务内调用才具备原子性。
func (r *rankRepo) Replace(ctx context.Context, records []types.RankRecord) error {
	db := r.db.WithContext(ctx)
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.StrategyRankModel{}).Error; err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	now := nowUnix()
	rows := make([]model.StrategyRankModel, 0, len(records))
	for _, rec := range records {
		rows = append(rows, model.StrategyRankModel{
			StrategyID:    rec.StrategyID,
			Rank:          rec.Rank,
			EpochID:       rec.EpochID,
			Score:         rec.Score,
			CreatedAtUnix: now,
		})
	}
	return db.CreateInBatches(rows, 100).Error
}

func rankFromModel(row model.StrategyRankModel) types.RankRecord {
	return types.RankRecord{
		StrategyID: row.StrategyID,
		Rank:       row.Rank,
		EpochID:    row.EpochID,
		Score:      row.Score,
	}
}

type coefficientRepo struct {
	db *gorm.DB
}

func NewCoefficientRepo(db *gorm.DB) *coefficientRepo {
	return &coefficientRepo{db: db}
}

func (r *coefficientRepo) List(ctx context.Context) ([]types.CoefficientRecord, error) {
	var rows []model.RankCoefficientModel
	if err := r.db.WithContext(ctx).Order("rank ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.CoefficientRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.CoefficientRecord{Rank: row.Rank, Weight: row.Weight})
	}
	return out, nil
}

func (r *coefficientRepo) Get(ctx context.Context, rank int) (decimal.Decimal, error) {
	var row model.RankCoefficientModel
	if err := r.db.WithContext(ctx).Where("rank = ?", rank).First(&row).Error; err != nil {
		return decimal.Zero, notFound(err)
	}
	return row.Weight, nil
}

func (r *coefficientRepo) Replace(ctx context.Context, records []types.CoefficientRecord) error {
	db := r.db.WithContext(ctx)
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.RankCoefficientModel{}).Error; err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	rows := make([]model.RankCoefficientModel, 0, len(records))
	for _, rec := range records {
		rows = append(rows, model.RankCoefficientModel{Rank: rec.Rank, Weight: rec.Weight})
	}
	return db.CreateInBatches(rows, 100).Error
}

type idealPeriodRepo struct {
	db *gorm.DB
}

func NewIdealPeriodRepo(db *gorm.DB) *idealPeriodRepo {
	return &idealPeriodRepo{db: db}
}

func (r *idealPeriodRepo) Get(ctx context.Context, strategyID string) (types.IdealPeriodRecord, error) {
	var row model.IdealPeriodModel
	if err := r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&row).Error; err != nil {
		return types.IdealPeriodRecord{}, notFound(err)
	}
	return types.IdealPeriodRecord{StrategyID: row.StrategyID, Window: row.Window}, nil
}

func (r *idealPeriodRepo) List(ctx context.Context) ([]types.IdealPeriodRecord, error) {
	var rows []model.IdealPeriodModel
	if err := r.db.WithContext(ctx).Order("strategy_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.IdealPeriodRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.IdealPeriodRecord{StrategyID: row.StrategyID, Window: row.Window})
	}
	return out, nil
}

func (r *idealPeriodRepo) Upsert(ctx context.Context, rec types.IdealPeriodRecord) error {
	row := model.IdealPeriodModel{StrategyID: rec.StrategyID, Window: rec.Window}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"window_interval"}),
	}).Create(&row).Error
}

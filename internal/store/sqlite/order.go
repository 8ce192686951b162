package sqlite

import (
	"context"
	"errors"
	"time"

	"quorum/internal/store/model"
	"quorum/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderRepository implements the OrderRepository interface.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepo creates a new orderRepo.
func NewOrderRepo(db *gorm.DB) *orderRepository {
	return &orderRepository{db: db}
}

// Save saves or updates an order keyed by its client order id.
func (r *orderRepository) Save(ctx context.Context, order *types.LiveOrder) error {
	if order == nil {
		return errors.New("order cannot be nil")
	}
	if order.ClientOrderID == "" {
		return errors.New("order client id cannot be empty")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	row := model.LiveOrderModel{
		ClientOrderID: order.ClientOrderID,
		BrokerOrderID: order.BrokerOrderID,
		Instrument:    order.Instrument,
		Side:          string(order.Side),
		Quantity:      order.Quantity,
		Price:         order.Price,
		Reason:        order.Reason,
		Status:        order.Status,
		CreatedAtUnix: order.CreatedAt.Unix(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"broker_order_id", "status"}),
	}).Create(&row).Error
}

// ListRecent lists recent orders.
func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]types.LiveOrder, error) {
	var rows []model.LiveOrderModel
	if limit <= 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.LiveOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.LiveOrder{
			ClientOrderID: row.ClientOrderID,
			BrokerOrderID: row.BrokerOrderID,
			Instrument:    row.Instrument,
			Side:          types.OrderSide(row.Side),
			Quantity:      row.Quantity,
			Price:         row.Price,
			Reason:        row.Reason,
			Status:        row.Status,
			CreatedAt:     unixTime(row.CreatedAtUnix),
		})
	}
	return out, nil
}

type snapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) *snapshotRepo {
	return &snapshotRepo{db: db}
}

func (r *snapshotRepo) Insert(ctx context.Context, snap types.PortfolioSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	row := model.PortfolioSnapshotModel{
		Cash:           snap.Cash,
		PortfolioValue: snap.PortfolioValue,
		ReturnPct:      snap.ReturnPct,
		CreatedAtUnix:  snap.CreatedAt.Unix(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *snapshotRepo) ListRecent(ctx context.Context, limit int) ([]types.PortfolioSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.PortfolioSnapshotModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.PortfolioSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.PortfolioSnapshot{
			Cash:           row.Cash,
			PortfolioValue: row.PortfolioValue,
			ReturnPct:      row.ReturnPct,
			CreatedAt:      unixTime(row.CreatedAtUnix),
		})
	}
	return out, nil
}

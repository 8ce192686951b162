package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorum/internal/store"
	"quorum/internal/store/model"
	"quorum/internal/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SqliteStore struct {
	db *gorm.DB
	repos
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// _txlock=immediate 让写事务在 BEGIN 时即取得写锁，并发写者按 busy_timeout 排队。
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	return newSqliteStore(db)
}

func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db, repos: repos{db: db}}, nil
}

func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, tx.Error)
	}
	return &gormUnitOfWork{tx: tx, repos: repos{db: tx}}, nil
}

// Ping 检查底层连接是否可用。
func (s *SqliteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUnitOfWork struct {
	tx *gorm.DB
	repos
}

func (u *gormUnitOfWork) Commit() error {
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return nil
	}
	return err
}

// repos 绑定一个 *gorm.DB（普通连接或事务）并返回各仓储实现。
type repos struct {
	db *gorm.DB
}

func (r repos) Ledgers() store.LedgerRepository           { return NewLedgerRepo(r.db) }
func (r repos) Points() store.PointsRepository            { return NewPointsRepo(r.db) }
func (r repos) TimeDelta() store.TimeDeltaRepository      { return NewTimeDeltaRepo(r.db) }
func (r repos) Ranks() store.RankRepository               { return NewRankRepo(r.db) }
func (r repos) Coefficients() store.CoefficientRepository { return NewCoefficientRepo(r.db) }
func (r repos) IdealPeriods() store.IdealPeriodRepository { return NewIdealPeriodRepo(r.db) }
func (r repos) Limits() store.PositionLimitRepository     { return NewPositionLimitRepo(r.db) }
func (r repos) Holdings() store.LiveHoldingRepository     { return NewLiveHoldingRepo(r.db) }
func (r repos) Orders() store.OrderRepository             { return NewOrderRepo(r.db) }
func (r repos) Snapshots() store.SnapshotRepository       { return NewSnapshotRepo(r.db) }

func nowUnix() int64 { return time.Now().Unix() }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

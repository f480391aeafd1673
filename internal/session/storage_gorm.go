package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tokenSlot = "default"

type SessionToken struct {
	Slot      string    `gorm:"primaryKey"     json:"slot"`
	Token     string    `gorm:"not null"       json:"-"`
	UpdatedAt time.Time `gorm:"not null"       json:"updated_at"`
}

func (SessionToken) TableName() string {
	return "session_tokens"
}

// GormStorage keeps the token in a single row of session_tokens.
type GormStorage struct {
	DB *gorm.DB
}

func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewGormStorage(db *gorm.DB) (*GormStorage, error) {
	if err := db.AutoMigrate(&SessionToken{}); err != nil {
		return nil, fmt.Errorf("migrate session_tokens: %w", err)
	}
	return &GormStorage{DB: db}, nil
}

func (g *GormStorage) Load(ctx context.Context) (string, error) {
	var row SessionToken
	err := g.DB.WithContext(ctx).Where("slot = ?", tokenSlot).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return row.Token, nil
}

func (g *GormStorage) Save(ctx context.Context, token string) error {
	row := SessionToken{Slot: tokenSlot, Token: token, UpdatedAt: time.Now().UTC()}
	err := g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (g *GormStorage) Clear(ctx context.Context) error {
	if err := g.DB.WithContext(ctx).Where("slot = ?", tokenSlot).Delete(&SessionToken{}).Error; err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (g *GormStorage) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

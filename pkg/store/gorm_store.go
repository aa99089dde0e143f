package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormBackend implements the durable tier on a SQL database through GORM.
// Postgres DSNs are used as-is; anything else is a sqlite file path.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend opens the DB and runs auto-migrations.
func NewGormBackend(dsn string) (*GormBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("durable store dsn required")
	}
	dialector, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}
	gormLog := gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormBackend{db: db}, nil
}

func openDialector(dsn string) (gorm.Dialector, error) {
	if isPostgresDSN(dsn) {
		return postgres.Open(dsn), nil
	}
	if dir := filepath.Dir(dsn); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create durable store dir: %w", err)
		}
	}
	return sqlite.Open(dsn), nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

func (g *GormBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var m EntryModel
	err := g.db.WithContext(ctx).Where("entry_key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Value, true, nil
}

func (g *GormBackend) Set(ctx context.Context, key, value string) error {
	m := EntryModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&m).Error
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&EntryModel{}).Error
}

func (g *GormBackend) Clear(ctx context.Context) error {
	return g.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&EntryModel{}).Error
}

// Close releases the underlying connection pool.
func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package repo

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/7331/binance-live-price-alerts/entity"
)

// OpenDB opens (creating if needed) the SQLite audit database at path.
func OpenDB(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	if err := InitTables(db); err != nil {
		return nil, errors.Wrap(err, "migrate tables")
	}
	return db, nil
}

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Alert{}, &entity.Delivery{})
}

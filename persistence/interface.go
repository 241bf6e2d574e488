// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/geoworld/config"
	"github.com/wfunc/geoworld/models"
)

// Database 游戏记录存储接口. Records are append-only; nothing is read back
// into the world.
type Database interface {
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	Close() error
}

// 错误定义
var (
	ErrUnknownDriver = fmt.Errorf("unknown records driver")
)

// Open builds the store named by cfg.Driver. The "none" driver returns a nil
// Database.
func Open(cfg config.RecordsConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "gorm":
		db, err := NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "journal":
		return NewJournal(cfg.JournalDir), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

package store

import (
	"fmt"

	"ebookGen/internal/config"
	"ebookGen/internal/database"
)

// Open 按配置选择存储后端：memory 使用进程内存储，其余驱动连接数据库并迁移表结构。
func Open(cfg config.DatabaseConfig) (Store, error) {
	if cfg.Driver == config.DriverMemory {
		return NewMemoryStore(), nil
	}
	db, err := database.InitDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return NewGormStore(db), nil
}

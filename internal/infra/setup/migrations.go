package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	gormpersistence "discussion-room/internal/infra/persistence/gorm"
)

// MigrateDB 使用传入的 GORM 连接迁移 rooms 表。
// 返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := db.AutoMigrate(&gormpersistence.RoomRecord{}); err != nil {
		logrus.Errorf("Failed to auto-migrate rooms table: %v", err)
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

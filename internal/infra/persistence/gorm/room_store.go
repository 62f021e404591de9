package gormpersistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"discussion-room/internal/domain"
	"discussion-room/internal/repository"
)

// DefaultMaxTxRetries 是事务失败（死锁、锁等待超时等）时的默认重试次数
const DefaultMaxTxRetries = 5

// GormRoomStore 是 RoomStore 接口的 GORM 实现。
// 读-改-写操作在事务中通过 SELECT ... FOR UPDATE 行锁串行化（悲观并发控制）。
type GormRoomStore struct {
	db         *gorm.DB
	maxRetries int
}

// NewGormRoomStore 创建 GormRoomStore 实例
func NewGormRoomStore(db *gorm.DB, maxRetries int) *GormRoomStore {
	if db == nil {
		panic("database connection cannot be nil for GormRoomStore")
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTxRetries
	}
	return &GormRoomStore{db: db, maxRetries: maxRetries}
}

// Exists 检查房间 ID 是否已被占用
func (r *GormRoomStore) Exists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&RoomRecord{}).Where("id = ?", roomID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by id '%s': %w", roomID, err)
	}
	return count > 0, nil
}

// Create 插入新房间，主键冲突映射为 ErrDuplicateEntry
func (r *GormRoomStore) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Create(newRoomRecord(room)).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %s: %w", room.ID, err)
	}
	return nil
}

// Get 根据房间 ID 读取房间
func (r *GormRoomStore) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	var rec RoomRecord
	err := r.db.WithContext(ctx).Where("id = ?", roomID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", roomID, err)
	}
	return rec.toDomain(), nil
}

// Update 在事务中锁定房间行，调用 fn 计算写集合并提交。
func (r *GormRoomStore) Update(ctx context.Context, roomID string, fn repository.TxFunc) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "GormRoomStore.Update"})

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		var fnErr error
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			query := tx
			// SQLite 没有行锁，写事务由数据库级锁串行化
			if tx.Dialector.Name() != "sqlite" {
				query = query.Clauses(clause.Locking{Strength: "UPDATE"})
			}

			var rec RoomRecord
			var snapshot *domain.Room
			err := query.Where("id = ?", roomID).Take(&rec).Error
			switch {
			case err == nil:
				snapshot = rec.toDomain()
			case errors.Is(err, gorm.ErrRecordNotFound):
				// 房间不存在，由 fn 决定如何处理
			default:
				return err
			}

			update, err := fn(snapshot)
			if err != nil {
				fnErr = err
				return err
			}
			if update.IsNoop() {
				return nil
			}
			if update.Delete {
				if snapshot == nil {
					return nil
				}
				return tx.Where("id = ?", roomID).Delete(&RoomRecord{}).Error
			}
			if snapshot == nil {
				fnErr = repository.ErrRoomNotFound
				return fnErr
			}

			columns, err := updateColumns(update)
			if err != nil {
				return err
			}
			return tx.Model(&RoomRecord{}).Where("id = ?", roomID).Updates(columns).Error
		})

		if err == nil {
			return nil
		}
		if fnErr != nil {
			return fnErr
		}
		if ctx.Err() != nil {
			return fmt.Errorf("gorm: update room %s: %w", roomID, ctx.Err())
		}
		lastErr = err
		logCtx.WithError(err).WithField("attempt", attempt).Warn("Transaction failed, retrying")
	}

	return fmt.Errorf("gorm: update room %s after %d attempts (last error: %v): %w",
		roomID, r.maxRetries, lastErr, repository.ErrTxConflict)
}

// UpdateSettings 直接更新 topic/duration/status
func (r *GormRoomStore) UpdateSettings(ctx context.Context, roomID, topic string, duration int) error {
	return r.updateExisting(ctx, roomID, map[string]interface{}{
		"topic":    topic,
		"duration": duration,
		"status":   string(domain.RoomStatusDiscussing),
	})
}

// ResetFinishedUsers 将 finished_users 覆盖为空 JSON 对象
func (r *GormRoomStore) ResetFinishedUsers(ctx context.Context, roomID string) error {
	return r.updateExisting(ctx, roomID, map[string]interface{}{"finished_users": "{}"})
}

func (r *GormRoomStore) updateExisting(ctx context.Context, roomID string, columns map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&RoomRecord{}).Where("id = ?", roomID).Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("gorm: update room %s: %w", roomID, result.Error)
	}
	// MySQL DSN 使用 clientFoundRows=true，值未变化时也会计入匹配行
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// Delete 删除房间
func (r *GormRoomStore) Delete(ctx context.Context, roomID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", roomID).Delete(&RoomRecord{}).Error; err != nil {
		return fmt.Errorf("gorm: delete room %s: %w", roomID, err)
	}
	return nil
}

// StaleRoomIDs 查询创建时间早于 before 的房间
func (r *GormRoomStore) StaleRoomIDs(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&RoomRecord{}).Where("created_at < ?", before).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find stale rooms: %w", err)
	}
	return ids, nil
}

func updateColumns(update *repository.RoomUpdate) (map[string]interface{}, error) {
	columns := make(map[string]interface{}, 2)
	if update.Participants != nil {
		b, err := json.Marshal(update.Participants)
		if err != nil {
			return nil, fmt.Errorf("gorm: marshal participants: %w", err)
		}
		columns["participants"] = string(b)
	}
	if update.FinishedUsers != nil {
		b, err := json.Marshal(update.FinishedUsers)
		if err != nil {
			return nil, fmt.Errorf("gorm: marshal finished users: %w", err)
		}
		columns["finished_users"] = string(b)
	}
	return columns, nil
}

// isDuplicateEntry 识别唯一约束冲突 (GORM 翻译后的错误或 MySQL 1062)
func isDuplicateEntry(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

package repository

import (
	"context"
	"time"

	"discussion-room/internal/domain"
)

// RoomUpdate 描述一次事务计算出的写集合。
// nil 字段表示该字段保持不变；Delete 为 true 时删除整个房间文档，其他字段被忽略。
type RoomUpdate struct {
	Delete        bool
	Participants  map[string]string
	FinishedUsers map[string]bool
}

// IsNoop 判断该写集合是否什么也不写。
func (u *RoomUpdate) IsNoop() bool {
	return u == nil || (!u.Delete && u.Participants == nil && u.FinishedUsers == nil)
}

// TxFunc 在事务内部被调用，参数为房间的只读快照（房间不存在时为 nil）。
// 返回的错误会中止事务且不写入任何数据。
// 存储实现可能因并发冲突而多次调用它，因此它不能有副作用。
type TxFunc func(snapshot *domain.Room) (*RoomUpdate, error)

// RoomStore 定义了房间文档的存储操作，由 Redis 或 SQL 数据库实现。
type RoomStore interface {
	// Exists 检查房间 ID 是否已被占用。
	Exists(ctx context.Context, roomID string) (bool, error)

	// Create 写入新房间。如果 ID 已存在，返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// Get 读取完整的房间文档。房间不存在时返回 ErrRoomNotFound。
	Get(ctx context.Context, roomID string) (*domain.Room, error)

	// Update 以原子的读-改-写事务执行 fn，并应用其返回的写集合。
	// 并发冲突会被有限次重试，耗尽后返回 ErrTxConflict。
	Update(ctx context.Context, roomID string, fn TxFunc) error

	// UpdateSettings 直接覆盖 topic、duration，并将 status 设置为 discussing（非事务）。
	// 房间不存在时返回 ErrRoomNotFound，且不会创建残缺文档。
	UpdateSettings(ctx context.Context, roomID, topic string, duration int) error

	// ResetFinishedUsers 将 finishedUsers 直接覆盖为空集合（非事务）。
	ResetFinishedUsers(ctx context.Context, roomID string) error

	// Delete 无条件删除房间（清理任务使用）。
	Delete(ctx context.Context, roomID string) error

	// StaleRoomIDs 返回创建时间早于 before 的房间 ID。
	StaleRoomIDs(ctx context.Context, before time.Time) ([]string, error)
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"discussion-room/internal/domain"
	"discussion-room/internal/tasks"
)

// RoomExpirer 删除超过最大存活时间的房间，返回被删除的房间 ID
type RoomExpirer interface {
	ExpireRooms(ctx context.Context, maxAge time.Duration) ([]string, error)
}

// RoomCloser 通知并断开某个逻辑房间内的所有连接
type RoomCloser interface {
	CloseRoom(ctx context.Context, room, event string, payload interface{})
}

// RoomSweepHandler 处理房间清理任务
type RoomSweepHandler struct {
	rooms  RoomExpirer
	closer RoomCloser
}

// NewRoomSweepHandler 创建 Handler 实例
func NewRoomSweepHandler(rooms RoomExpirer, closer RoomCloser) *RoomSweepHandler {
	if rooms == nil || closer == nil {
		panic("RoomExpirer and RoomCloser cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{rooms: rooms, closer: closer}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	payload, err := tasks.ParseRoomSweepPayload(t)
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	deleted, err := h.rooms.ExpireRooms(ctx, payload.MaxAge)
	if err != nil {
		return fmt.Errorf("failed to expire rooms: %w", err)
	}

	// 仍连接着的客户端会收到解散通知
	closed := domain.RoomClosed{Message: domain.RoomClosedMessage}
	for _, id := range deleted {
		h.closer.CloseRoom(ctx, id, domain.EventRoomClosed, closed)
		h.closer.CloseRoom(ctx, domain.DiscussionRoomName(id), domain.EventRoomClosed, closed)
	}

	logCtx.WithFields(logrus.Fields{"max_age": payload.MaxAge.String(), "expired": len(deleted)}).Info("Room sweep finished")
	return nil
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"discussion-room/internal/domain"
	"discussion-room/internal/repository"
)

// 房间 ID 是 5 位数字
const (
	roomIDMin   = 10000
	roomIDRange = 90000
)

// RoomService 负责房间生命周期相关的业务逻辑。
type RoomService struct {
	store repository.RoomStore
	newID func() (string, error)
	now   func() time.Time
}

// RoomServiceOption 用于在测试中替换 ID 生成器和时钟。
type RoomServiceOption func(*RoomService)

// WithIDGenerator 替换默认的随机房间 ID 生成器。
func WithIDGenerator(gen func() (string, error)) RoomServiceOption {
	return func(s *RoomService) { s.newID = gen }
}

// WithClock 替换默认时钟。
func WithClock(now func() time.Time) RoomServiceOption {
	return func(s *RoomService) { s.now = now }
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(store repository.RoomStore, opts ...RoomServiceOption) *RoomService {
	if store == nil {
		panic("RoomStore cannot be nil for RoomService")
	}
	s := &RoomService{
		store: store,
		newID: randomRoomID,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom 创建一个只包含房主的新房间，返回房间 ID。
func (s *RoomService) CreateRoom(ctx context.Context, username, uid string) (string, error) {
	if isBlank(username) || isBlank(uid) {
		return "", fmt.Errorf("%w: username and uid are required", ErrInvalidInput)
	}
	logCtx := logrus.WithFields(logrus.Fields{"uid": uid, "operation": "CreateRoom"})

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			logCtx.WithError(err).Warn("Context done while generating room id")
			return "", ErrServiceUnavailable
		}

		// 1. 生成随机 ID 并检查是否已被占用
		roomID, err := s.newID()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate room id")
			return "", ErrServiceUnavailable
		}
		exists, err := s.store.Exists(ctx, roomID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to check room id availability")
			return "", ErrServiceUnavailable
		}
		if exists {
			logCtx.WithField("room_id", roomID).Debugf("Room id already taken, retrying (attempt %d)", attempt)
			continue
		}

		// 2. 写入房间文档，与并发创建撞车时重新生成 ID
		err = s.store.Create(ctx, domain.NewRoom(roomID, uid, username, s.now()))
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithField("room_id", roomID).Warn("Room id taken by a concurrent create, retrying")
			continue
		}
		if err != nil {
			logCtx.WithError(err).WithField("room_id", roomID).Error("Failed to save new room")
			return "", ErrServiceUnavailable
		}

		logCtx.WithField("room_id", roomID).Info("Room created successfully")
		return roomID, nil
	}
}

// JoinRoom 在一个原子事务中把 uid 加入房间。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, uid, username string) (string, error) {
	if isBlank(roomID) || isBlank(uid) || isBlank(username) {
		return "", fmt.Errorf("%w: roomId, uid and username are required", ErrInvalidInput)
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "uid": uid, "operation": "JoinRoom"})

	err := s.store.Update(ctx, roomID, func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		return PlanJoin(snapshot, uid, username)
	})
	if err != nil {
		mapped := mapRepoError(err)
		if errors.Is(mapped, ErrServiceUnavailable) {
			logCtx.WithError(err).Error("Join transaction failed")
		} else {
			logCtx.WithError(mapped).Info("Join rejected")
		}
		return "", mapped
	}

	logCtx.Info("User joined room")
	return roomID, nil
}

// LeaveRoom 在一个原子事务中处理 uid 离开房间，返回事务结果。
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, uid string) (LeaveResult, error) {
	if isBlank(roomID) || isBlank(uid) {
		return "", fmt.Errorf("%w: roomId and uid are required", ErrInvalidInput)
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "uid": uid, "operation": "LeaveRoom"})

	// 存储层可能重试事务，这里只保留最后一次计算的结果
	var result LeaveResult
	err := s.store.Update(ctx, roomID, func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		var update *repository.RoomUpdate
		update, result = PlanLeave(snapshot, uid)
		return update, nil
	})
	if err != nil {
		logCtx.WithError(err).Error("Leave transaction failed")
		return "", mapRepoError(err)
	}

	logCtx.WithField("result", result).Info("User left room")
	return result, nil
}

// UpdateSettings 设置讨论主题和时长，并把房间切换到 discussing 状态。
// 调用者身份不在这里校验。
func (s *RoomService) UpdateSettings(ctx context.Context, roomID, topic string, duration int) error {
	if isBlank(roomID) || isBlank(topic) || duration <= 0 {
		return fmt.Errorf("%w: roomId, topic and a positive duration are required", ErrInvalidInput)
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "UpdateSettings"})

	if err := s.store.UpdateSettings(ctx, roomID, topic, duration); err != nil {
		logCtx.WithError(err).Warn("Failed to update room settings")
		return mapRepoError(err)
	}
	logCtx.WithField("duration", duration).Info("Room settings updated")
	return nil
}

// FinishStep 标记 uid 完成当前步骤，返回更新后的进度。
func (s *RoomService) FinishStep(ctx context.Context, roomID, uid string) (domain.Progress, error) {
	if isBlank(roomID) || isBlank(uid) {
		return domain.Progress{}, fmt.Errorf("%w: roomId and uid are required", ErrInvalidInput)
	}

	var progress domain.Progress
	err := s.store.Update(ctx, roomID, func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		update, p, err := PlanFinishStep(snapshot, uid)
		if err != nil {
			return nil, err
		}
		progress = p
		return update, nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "uid": uid}).WithError(err).Warn("FinishStep transaction failed")
		return domain.Progress{}, mapRepoError(err)
	}
	return progress, nil
}

// ResetProgress 清空已完成当前步骤的参加者集合（进入下一步骤时由房主触发）。
func (s *RoomService) ResetProgress(ctx context.Context, roomID string) error {
	if isBlank(roomID) {
		return fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}
	if err := s.store.ResetFinishedUsers(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to reset progress")
		return mapRepoError(err)
	}
	return nil
}

// GetRoom 读取完整的房间文档。
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if isBlank(roomID) {
		return nil, fmt.Errorf("%w: roomId is required", ErrInvalidInput)
	}
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			logrus.WithField("room_id", roomID).WithError(err).Error("GetRoom: repository error")
		}
		return nil, mapRepoError(err)
	}
	return room, nil
}

// ExpireRooms 删除创建时间早于 maxAge 的房间，返回被删除的房间 ID。
// 单个房间删除失败不会中断其余房间的清理。
func (s *RoomService) ExpireRooms(ctx context.Context, maxAge time.Duration) ([]string, error) {
	logCtx := logrus.WithField("operation", "ExpireRooms")
	ids, err := s.store.StaleRoomIDs(ctx, s.now().Add(-maxAge))
	if err != nil {
		logCtx.WithError(err).Error("Failed to list stale rooms")
		return nil, mapRepoError(err)
	}

	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil {
			logCtx.WithError(err).WithField("room_id", id).Warn("Failed to delete stale room")
			continue
		}
		deleted = append(deleted, id)
	}
	if len(deleted) > 0 {
		logCtx.WithField("count", len(deleted)).Info("Expired stale rooms")
	}
	return deleted, nil
}

// randomRoomID 生成 10000-99999 之间的随机数字 ID
func randomRoomID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(roomIDRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate random room id: %w", err)
	}
	return fmt.Sprintf("%d", roomIDMin+n.Int64()), nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

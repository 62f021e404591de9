package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"discussion-room/internal/domain"
	"discussion-room/internal/repository"
)

// 房间 Hash 中的字段名
const (
	fieldCreatorUID    = "creatorUid"
	fieldParticipants  = "participants"
	fieldFinishedUsers = "finishedUsers"
	fieldTopic         = "topic"
	fieldDuration      = "duration"
	fieldStatus        = "status"
	fieldCreatedAt     = "createdAt"
)

// DefaultMaxTxRetries 是乐观事务冲突时的默认重试次数
const DefaultMaxTxRetries = 5

// hsetIfExists 只在 key 已存在时执行 HSET，避免盲写创建出残缺的房间文档。
var hsetIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// RedisRoomStore 是 RoomStore 接口的 Redis 实现。
// 每个房间是一个 Hash，读-改-写操作通过 WATCH/MULTI/EXEC 实现乐观事务。
type RedisRoomStore struct {
	client     *redis.Client
	keyPrefix  string
	maxRetries int
}

// NewRedisRoomStore 创建 RedisRoomStore 实例
func NewRedisRoomStore(client *redis.Client, keyPrefix string, maxRetries int) *RedisRoomStore {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomStore")
	}
	if keyPrefix == "" {
		keyPrefix = "dr:" // 默认前缀 "dr:" (discussion room)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTxRetries
	}
	return &RedisRoomStore{
		client:     client,
		keyPrefix:  keyPrefix,
		maxRetries: maxRetries,
	}
}

// --- Key Generation Helpers ---
func (r *RedisRoomStore) roomKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, roomID)
}

func (r *RedisRoomStore) createdIndexKey() string {
	return r.keyPrefix + "rooms:created"
}

// --- RoomStore Interface Implementation ---

// Exists 检查房间 key 是否存在
func (r *RedisRoomStore) Exists(ctx context.Context, roomID string) (bool, error) {
	key := r.roomKey(roomID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check existence of %s: %w", key, err)
	}
	return n > 0, nil
}

// Create 在 WATCH 保护下写入新房间，并登记到创建时间索引中。
func (r *RedisRoomStore) Create(ctx context.Context, room *domain.Room) error {
	key := r.roomKey(room.ID)
	values, err := encodeRoom(room)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return repository.ErrDuplicateEntry
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			pipe.ZAdd(ctx, r.createdIndexKey(), &redis.Z{Score: float64(room.CreatedAt.Unix()), Member: room.ID})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateEntry), errors.Is(err, redis.TxFailedErr):
		// 另一个创建请求抢先写入了同一个 ID
		return repository.ErrDuplicateEntry
	default:
		return fmt.Errorf("redis: failed to create room %s: %w", room.ID, err)
	}
}

// Get 读取完整的房间文档
func (r *RedisRoomStore) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	key := r.roomKey(roomID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get room from %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrRoomNotFound
	}
	return decodeRoom(roomID, fields)
}

// Update 执行一次乐观事务：WATCH 房间 key，读取快照，调用 fn 计算写集合，
// 再通过 MULTI/EXEC 提交。如果 key 在此期间被修改，EXEC 失败并重试。
func (r *RedisRoomStore) Update(ctx context.Context, roomID string, fn repository.TxFunc) error {
	key := r.roomKey(roomID)
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "RedisRoomStore.Update"})

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		var fnErr error
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			var snapshot *domain.Room
			if len(fields) > 0 {
				if snapshot, err = decodeRoom(roomID, fields); err != nil {
					return err
				}
			}

			update, err := fn(snapshot)
			if err != nil {
				fnErr = err
				return err
			}
			if update.IsNoop() {
				return nil
			}
			if snapshot == nil && !update.Delete {
				fnErr = repository.ErrRoomNotFound
				return fnErr
			}

			values, err := encodeUpdate(update)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if update.Delete {
					pipe.Del(ctx, key)
					pipe.ZRem(ctx, r.createdIndexKey(), roomID)
					return nil
				}
				pipe.HSet(ctx, key, values)
				return nil
			})
			return err
		}, key)

		if err == nil {
			return nil
		}
		if fnErr != nil {
			// 业务逻辑拒绝了本次修改，不写入任何数据
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			logCtx.WithField("attempt", attempt).Debug("Optimistic transaction conflict, retrying")
			continue
		}
		return fmt.Errorf("redis: transaction on %s failed: %w", key, err)
	}

	logCtx.WithField("max_retries", r.maxRetries).Warn("Optimistic transaction retries exhausted")
	return fmt.Errorf("redis: update room %s after %d attempts: %w", roomID, r.maxRetries, repository.ErrTxConflict)
}

// UpdateSettings 盲写 topic/duration/status
func (r *RedisRoomStore) UpdateSettings(ctx context.Context, roomID, topic string, duration int) error {
	return r.setIfExists(ctx, roomID,
		fieldTopic, topic,
		fieldDuration, strconv.Itoa(duration),
		fieldStatus, string(domain.RoomStatusDiscussing),
	)
}

// ResetFinishedUsers 将完成者集合覆盖为空
func (r *RedisRoomStore) ResetFinishedUsers(ctx context.Context, roomID string) error {
	return r.setIfExists(ctx, roomID, fieldFinishedUsers, "{}")
}

func (r *RedisRoomStore) setIfExists(ctx context.Context, roomID string, fieldValues ...interface{}) error {
	key := r.roomKey(roomID)
	written, err := hsetIfExists.Run(ctx, r.client, []string{key}, fieldValues...).Int()
	if err != nil {
		return fmt.Errorf("redis: failed to write fields on %s: %w", key, err)
	}
	if written == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// Delete 删除房间及其索引项
func (r *RedisRoomStore) Delete(ctx context.Context, roomID string) error {
	key := r.roomKey(roomID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, r.createdIndexKey(), roomID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to delete room %s: %w", key, err)
	}
	return nil
}

// StaleRoomIDs 从创建时间索引中查找早于 before 的房间
func (r *RedisRoomStore) StaleRoomIDs(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.createdIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to query stale rooms: %w", err)
	}
	return ids, nil
}

// --- 编码/解码 ---

func encodeRoom(room *domain.Room) (map[string]interface{}, error) {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to marshal participants for room %s: %w", room.ID, err)
	}
	finished := room.FinishedUsers
	if finished == nil {
		finished = map[string]bool{}
	}
	finishedBytes, err := json.Marshal(finished)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to marshal finished users for room %s: %w", room.ID, err)
	}
	values := map[string]interface{}{
		fieldCreatorUID:    room.CreatorUID,
		fieldParticipants:  string(participants),
		fieldFinishedUsers: string(finishedBytes),
		fieldStatus:        string(room.Status),
		fieldCreatedAt:     room.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if room.Topic != "" {
		values[fieldTopic] = room.Topic
	}
	if room.Duration > 0 {
		values[fieldDuration] = strconv.Itoa(room.Duration)
	}
	return values, nil
}

func encodeUpdate(update *repository.RoomUpdate) (map[string]interface{}, error) {
	values := make(map[string]interface{}, 2)
	if update.Participants != nil {
		b, err := json.Marshal(update.Participants)
		if err != nil {
			return nil, fmt.Errorf("redis: failed to marshal participants: %w", err)
		}
		values[fieldParticipants] = string(b)
	}
	if update.FinishedUsers != nil {
		b, err := json.Marshal(update.FinishedUsers)
		if err != nil {
			return nil, fmt.Errorf("redis: failed to marshal finished users: %w", err)
		}
		values[fieldFinishedUsers] = string(b)
	}
	return values, nil
}

func decodeRoom(roomID string, fields map[string]string) (*domain.Room, error) {
	room := &domain.Room{
		ID:            roomID,
		CreatorUID:    fields[fieldCreatorUID],
		Topic:         fields[fieldTopic],
		Status:        domain.RoomStatus(fields[fieldStatus]),
		Participants:  map[string]string{},
		FinishedUsers: map[string]bool{},
	}
	if room.Status == "" {
		room.Status = domain.RoomStatusWaiting
	}
	if raw := fields[fieldParticipants]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.Participants); err != nil {
			return nil, fmt.Errorf("redis: failed to unmarshal participants of room %s: %w", roomID, err)
		}
	}
	if raw := fields[fieldFinishedUsers]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.FinishedUsers); err != nil {
			return nil, fmt.Errorf("redis: failed to unmarshal finished users of room %s: %w", roomID, err)
		}
	}
	if raw := fields[fieldDuration]; raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("redis: failed to parse duration '%s' of room %s: %w", raw, roomID, err)
		}
		room.Duration = d
	}
	if raw := fields[fieldCreatedAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("redis: failed to parse createdAt '%s' of room %s: %w", raw, roomID, err)
		}
		room.CreatedAt = t
	}
	return room, nil
}

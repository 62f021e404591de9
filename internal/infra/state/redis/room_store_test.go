package redisstate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discussion-room/internal/domain"
	redisstate "discussion-room/internal/infra/state/redis"
	"discussion-room/internal/repository"
)

func newTestStore(t *testing.T, maxRetries int) (*redisstate.RedisRoomStore, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstate.NewRedisRoomStore(client, "test:", maxRetries), client, mr
}

func TestRedisRoomStore_CreateAndGet(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	room := domain.NewRoom("12345", "u1", "Alice", createdAt)
	require.NoError(t, store.Create(ctx, room))

	exists, err := store.Exists(ctx, "12345")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Get(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", got.ID)
	assert.Equal(t, "u1", got.CreatorUID)
	assert.Equal(t, map[string]string{"u1": "Alice"}, got.Participants)
	assert.Equal(t, domain.RoomStatusWaiting, got.Status)
	assert.Empty(t, got.FinishedUsers)
	assert.Empty(t, got.Topic)
	assert.Zero(t, got.Duration)
	assert.True(t, createdAt.Equal(got.CreatedAt))
}

func TestRedisRoomStore_CreateDuplicate(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewRoom("11111", "u1", "Alice", time.Now())))
	err := store.Create(ctx, domain.NewRoom("11111", "u2", "Bob", time.Now()))
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	// 原文档不应被覆盖
	got, err := store.Get(ctx, "11111")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.CreatorUID)
}

func TestRedisRoomStore_GetMissing(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	_, err := store.Get(context.Background(), "99999")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestRedisRoomStore_UpdateAppliesWriteSet(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("22222", "u1", "Alice", time.Now())))

	err := store.Update(ctx, "22222", func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		require.NotNil(t, snapshot)
		participants := snapshot.Clone().Participants
		participants["u2"] = "Bob"
		return &repository.RoomUpdate{
			Participants:  participants,
			FinishedUsers: map[string]bool{"u2": true},
		}, nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "22222")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Alice", "u2": "Bob"}, got.Participants)
	assert.Equal(t, map[string]bool{"u2": true}, got.FinishedUsers)
	assert.Equal(t, "u1", got.CreatorUID, "untouched fields are preserved")
}

func TestRedisRoomStore_UpdateDelete(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	createdAt := time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.Create(ctx, domain.NewRoom("33333", "u1", "Alice", createdAt)))

	err := store.Update(ctx, "33333", func(*domain.Room) (*repository.RoomUpdate, error) {
		return &repository.RoomUpdate{Delete: true}, nil
	})
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "33333")
	require.NoError(t, err)
	assert.False(t, exists)

	stale, err := store.StaleRoomIDs(ctx, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, stale, "33333", "deleted rooms leave the creation index")
}

func TestRedisRoomStore_UpdateFnErrorWritesNothing(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("44444", "u1", "Alice", time.Now())))

	sentinel := errors.New("rejected")
	err := store.Update(ctx, "44444", func(*domain.Room) (*repository.RoomUpdate, error) {
		return nil, sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	got, err := store.Get(ctx, "44444")
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
}

func TestRedisRoomStore_UpdateMissingRoomPassesNilSnapshot(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()

	called := false
	err := store.Update(ctx, "55555", func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		called = true
		assert.Nil(t, snapshot)
		// 对不存在的房间返回写集合不会创建文档
		return &repository.RoomUpdate{Participants: map[string]string{"x": "X"}}, nil
	})
	assert.True(t, called)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	exists, err := store.Exists(ctx, "55555")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisRoomStore_UpdateRetriesOnConflictThenGivesUp(t *testing.T) {
	store, client, _ := newTestStore(t, 3)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("66666", "u1", "Alice", time.Now())))

	attempts := 0
	err := store.Update(ctx, "66666", func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		attempts++
		// 在事务提交前由另一个连接修改被 WATCH 的 key，迫使 EXEC 失败
		require.NoError(t, client.HSet(ctx, "test:room:66666", "topic", "interference").Err())
		return &repository.RoomUpdate{FinishedUsers: map[string]bool{"u1": true}}, nil
	})
	assert.ErrorIs(t, err, repository.ErrTxConflict)
	assert.Equal(t, 3, attempts)

	got, err := store.Get(ctx, "66666")
	require.NoError(t, err)
	assert.Empty(t, got.FinishedUsers, "no attempt may commit")
}

func TestRedisRoomStore_UpdateSucceedsAfterTransientConflict(t *testing.T) {
	store, client, _ := newTestStore(t, 3)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewRoom("77777", "u1", "Alice", time.Now())))

	attempts := 0
	err := store.Update(ctx, "77777", func(snapshot *domain.Room) (*repository.RoomUpdate, error) {
		attempts++
		if attempts == 1 {
			require.NoError(t, client.HSet(ctx, "test:room:77777", "participants", `{"u1":"Alice","u9":"Zed"}`).Err())
		}
		participants := snapshot.Clone().Participants
		participants["u2"] = "Bob"
		return &repository.RoomUpdate{Participants: participants}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	got, err := store.Get(ctx, "77777")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Alice", "u9": "Zed", "u2": "Bob"}, got.Participants,
		"the retry must see the concurrent write")
}

func TestRedisRoomStore_UpdateSettingsAndReset(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	room := domain.NewRoom("88888", "u1", "Alice", time.Now())
	room.FinishedUsers = map[string]bool{"u1": true}
	require.NoError(t, store.Create(ctx, room))

	require.NoError(t, store.UpdateSettings(ctx, "88888", "T", 30))
	require.NoError(t, store.ResetFinishedUsers(ctx, "88888"))

	got, err := store.Get(ctx, "88888")
	require.NoError(t, err)
	assert.Equal(t, "T", got.Topic)
	assert.Equal(t, 30, got.Duration)
	assert.Equal(t, domain.RoomStatusDiscussing, got.Status)
	assert.Empty(t, got.FinishedUsers)
}

func TestRedisRoomStore_BlindWritesOnMissingRoom(t *testing.T) {
	store, _, mr := newTestStore(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, store.UpdateSettings(ctx, "10001", "T", 30), repository.ErrRoomNotFound)
	assert.ErrorIs(t, store.ResetFinishedUsers(ctx, "10001"), repository.ErrRoomNotFound)
	assert.False(t, mr.Exists("test:room:10001"))
}

func TestRedisRoomStore_StaleRoomIDs(t *testing.T) {
	store, _, _ := newTestStore(t, 0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, domain.NewRoom("20000", "u1", "Old", now.Add(-48*time.Hour))))
	require.NoError(t, store.Create(ctx, domain.NewRoom("20001", "u2", "New", now)))

	stale, err := store.StaleRoomIDs(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"20000"}, stale)

	require.NoError(t, store.Delete(ctx, "20000"))
	stale, err = store.StaleRoomIDs(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

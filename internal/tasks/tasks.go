package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	TypeRoomSweep = "room:sweep" // 清理超过最大存活时间的房间
)

// RoomSweepPayload 定义房间清理任务的数据结构
type RoomSweepPayload struct {
	// MaxAge 早于 now-MaxAge 创建的房间会被删除
	MaxAge time.Duration `json:"max_age"`
}

// NewRoomSweepTask 创建一个房间清理任务
func NewRoomSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("room sweep max age must be positive, got %s", maxAge)
	}
	payload, err := json.Marshal(RoomSweepPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	// 下一轮调度会重新清理，失败后不必多次重试
	return asynq.NewTask(TypeRoomSweep, payload, asynq.MaxRetry(1)), nil
}

// ParseRoomSweepPayload 解析清理任务的负载
func ParseRoomSweepPayload(t *asynq.Task) (RoomSweepPayload, error) {
	var p RoomSweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, err
	}
	if p.MaxAge <= 0 {
		return p, fmt.Errorf("invalid max age %s", p.MaxAge)
	}
	return p, nil
}

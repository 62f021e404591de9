package domain

import (
	"sort"
	"time"
)

// MaxParticipants 是单个房间允许的最大参加人数（包含房主）。
const MaxParticipants = 5

// RoomStatus 表示房间所处的阶段。
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"    // 房间已创建，等待房主配置议题
	RoomStatusDiscussing RoomStatus = "discussing" // 房主已提交设置，讨论进行中
)

// Room 表示一个短期存在的讨论房间。
// 一个房间对应存储中的一个文档，以 ID 为键。
type Room struct {
	ID            string            `json:"roomId"`
	CreatorUID    string            `json:"creatorUid"`
	Participants  map[string]string `json:"participants"`       // uid -> 显示名
	Topic         string            `json:"topic,omitempty"`    // 设置完成后才存在
	Duration      int               `json:"duration,omitempty"` // 分钟，设置完成后才存在
	Status        RoomStatus        `json:"status"`
	FinishedUsers map[string]bool   `json:"finishedUsers"` // 已完成当前步骤的 uid
	CreatedAt     time.Time         `json:"createdAt"`
}

// NewRoom 创建一个只包含房主的新房间。
func NewRoom(id, creatorUID, creatorName string, now time.Time) *Room {
	return &Room{
		ID:            id,
		CreatorUID:    creatorUID,
		Participants:  map[string]string{creatorUID: creatorName},
		Status:        RoomStatusWaiting,
		FinishedUsers: map[string]bool{},
		CreatedAt:     now,
	}
}

// HasParticipant 判断 uid 是否在房间中。
func (r *Room) HasParticipant(uid string) bool {
	_, ok := r.Participants[uid]
	return ok
}

// IsFull 判断再加入一个新身份是否会超过人数上限。
func (r *Room) IsFull() bool {
	return len(r.Participants) >= MaxParticipants
}

// ParticipantNames 返回按字典序排列的参加者显示名列表。
func (r *Room) ParticipantNames() []string {
	names := make([]string, 0, len(r.Participants))
	for _, name := range r.Participants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone 返回深拷贝，状态转换不会修改原快照。
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Participants = make(map[string]string, len(r.Participants))
	for k, v := range r.Participants {
		c.Participants[k] = v
	}
	c.FinishedUsers = make(map[string]bool, len(r.FinishedUsers))
	for k, v := range r.FinishedUsers {
		c.FinishedUsers[k] = v
	}
	return &c
}

// DiscussionRoomName 返回讨论子房间（聊天 + 进度）的广播名称。
func DiscussionRoomName(roomID string) string {
	return "discussion_" + roomID
}

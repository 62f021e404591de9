package gormpersistence

import (
	"time"

	"discussion-room/internal/domain"
)

// RoomRecord 是房间在关系数据库中的行结构。
// participants / finished_users 以 JSON 文本列保存。
type RoomRecord struct {
	ID            string            `gorm:"primaryKey;size:16"`
	CreatorUID    string            `gorm:"size:191;not null"`
	Participants  map[string]string `gorm:"type:text;serializer:json;not null"`
	FinishedUsers map[string]bool   `gorm:"type:text;serializer:json;not null"`
	Topic         string            `gorm:"type:text"`
	Duration      int               `gorm:"not null;default:0"`
	Status        string            `gorm:"size:20;not null;default:waiting"`
	CreatedAt     time.Time         `gorm:"index;not null"`
}

// TableName 指定表名
func (RoomRecord) TableName() string { return "rooms" }

func newRoomRecord(room *domain.Room) *RoomRecord {
	finished := room.FinishedUsers
	if finished == nil {
		finished = map[string]bool{}
	}
	return &RoomRecord{
		ID:            room.ID,
		CreatorUID:    room.CreatorUID,
		Participants:  room.Participants,
		FinishedUsers: finished,
		Topic:         room.Topic,
		Duration:      room.Duration,
		Status:        string(room.Status),
		CreatedAt:     room.CreatedAt,
	}
}

func (r *RoomRecord) toDomain() *domain.Room {
	room := &domain.Room{
		ID:            r.ID,
		CreatorUID:    r.CreatorUID,
		Participants:  r.Participants,
		FinishedUsers: r.FinishedUsers,
		Topic:         r.Topic,
		Duration:      r.Duration,
		Status:        domain.RoomStatus(r.Status),
		CreatedAt:     r.CreatedAt,
	}
	if room.Participants == nil {
		room.Participants = map[string]string{}
	}
	if room.FinishedUsers == nil {
		room.FinishedUsers = map[string]bool{}
	}
	return room
}

package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"discussion-room/internal/domain"
	"discussion-room/internal/hub"
	"discussion-room/internal/service"
)

// roomEvent 是客户端事件负载中用到的字段
type roomEvent struct {
	RoomID  string          `json:"roomId"`
	UID     string          `json:"uid"`
	Message json.RawMessage `json:"message"`
}

// EventRouter 把实时事件映射到房间生命周期操作和广播。
// 任何错误都只记录日志并丢弃该事件，连接保持不变。
type EventRouter struct {
	hub   *hub.Hub
	rooms *service.RoomService
}

// NewEventRouter 创建 EventRouter 实例
func NewEventRouter(h *hub.Hub, rooms *service.RoomService) *EventRouter {
	if h == nil {
		panic("Hub cannot be nil for EventRouter")
	}
	if rooms == nil {
		panic("RoomService cannot be nil for EventRouter")
	}
	return &EventRouter{hub: h, rooms: rooms}
}

// HandleEvent 实现 hub.EventHandler
func (r *EventRouter) HandleEvent(ctx context.Context, client *hub.Client, event string, data json.RawMessage) {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.ID(), "event": event})

	var payload roomEvent
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			logCtx.WithError(err).Warn("Dropping event with malformed payload")
			return
		}
	}
	if payload.RoomID == "" {
		logCtx.Warn("Dropping event without roomId")
		return
	}
	logCtx = logCtx.WithField("room_id", payload.RoomID)

	switch event {
	case domain.EventJoinRoom:
		if payload.UID == "" {
			logCtx.Warn("join_room without uid")
			return
		}
		client.SetUID(payload.UID)
		r.hub.Join(client, payload.RoomID)
		logCtx.WithField("members", r.hub.Members(payload.RoomID)).Debug("Connection joined room")
		r.broadcastRoomState(ctx, payload.RoomID)

	case domain.EventLeaveRoom:
		if payload.UID == "" {
			logCtx.Warn("leave_room without uid")
			return
		}
		r.handleLeave(ctx, client, payload.RoomID, payload.UID)

	case domain.EventStartDiscussion:
		r.hub.Emit(ctx, payload.RoomID, domain.EventDiscussionStarted, domain.DiscussionStarted{RoomID: payload.RoomID})

	case domain.EventJoinDiscussionRoom:
		discussion := domain.DiscussionRoomName(payload.RoomID)
		r.hub.Join(client, discussion)
		logCtx.WithField("members", r.hub.Members(discussion)).Debug("Connection joined discussion room")

	case domain.EventSendMessage:
		msg := bytes.TrimSpace(payload.Message)
		if len(msg) == 0 || bytes.Equal(msg, []byte("null")) || bytes.Equal(msg, []byte(`""`)) {
			logCtx.Debug("send_message without message")
			return
		}
		// 消息内容原样转发给讨论房间内除发送者以外的连接
		r.hub.EmitExcept(ctx, domain.DiscussionRoomName(payload.RoomID), domain.EventNewMessage, json.RawMessage(msg), client)

	case domain.EventFinishStep:
		if payload.UID == "" {
			logCtx.Warn("finish_step without uid")
			return
		}
		progress, err := r.rooms.FinishStep(ctx, payload.RoomID, payload.UID)
		if err != nil {
			logCtx.WithError(err).Warn("finish_step failed")
			return
		}
		r.hub.Emit(ctx, domain.DiscussionRoomName(payload.RoomID), domain.EventProgressUpdate, progress)

	case domain.EventResetProgress:
		if err := r.rooms.ResetProgress(ctx, payload.RoomID); err != nil {
			logCtx.WithError(err).Warn("reset_progress_for_next_step failed")
		}

	default:
		logCtx.Warn("Unknown event")
	}
}

func (r *EventRouter) handleLeave(ctx context.Context, client *hub.Client, roomID, uid string) {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.ID(), "room_id": roomID, "uid": uid})

	result, err := r.rooms.LeaveRoom(ctx, roomID, uid)
	if err != nil {
		logCtx.WithError(err).Warn("leave_room failed")
		return
	}

	// 离开者不再接收该房间的任何广播
	r.hub.Leave(client, roomID)
	r.hub.Leave(client, domain.DiscussionRoomName(roomID))

	switch result {
	case service.LeaveHostLeft:
		closed := domain.RoomClosed{Message: domain.RoomClosedMessage}
		r.hub.CloseRoom(ctx, roomID, domain.EventRoomClosed, closed)
		r.hub.CloseRoom(ctx, domain.DiscussionRoomName(roomID), domain.EventRoomClosed, closed)
	case service.LeaveUpdated:
		r.broadcastRoomState(ctx, roomID)
	}
}

// broadcastRoomState 重新读取房间并向大厅房间广播参加者列表和房主。
// join 和 leave 都调用它。
func (r *EventRouter) broadcastRoomState(ctx context.Context, roomID string) {
	room, err := r.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logrus.WithField("room_id", roomID).Debug("Room no longer exists, skipping participants_update")
		} else {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to read room for participants_update")
		}
		return
	}
	r.hub.Emit(ctx, roomID, domain.EventParticipantsUpdate, domain.ParticipantsUpdate{
		Participants: room.ParticipantNames(),
		CreatorUID:   room.CreatorUID,
	})
}

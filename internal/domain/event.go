package domain

// 实时事件名称 (客户端 -> 服务端)
const (
	EventJoinRoom           = "join_room"
	EventLeaveRoom          = "leave_room"
	EventStartDiscussion    = "start_discussion"
	EventJoinDiscussionRoom = "join_discussion_room"
	EventSendMessage        = "send_message"
	EventFinishStep         = "finish_step"
	EventResetProgress      = "reset_progress_for_next_step"
)

// 实时事件名称 (服务端 -> 房间)
const (
	EventParticipantsUpdate = "participants_update"
	EventRoomClosed         = "room_closed"
	EventDiscussionStarted  = "discussion_started"
	EventNewMessage         = "new_message"
	EventProgressUpdate     = "progress_update"
)

// RoomClosedMessage 是房主离开时随 room_closed 下发的提示文字。
const RoomClosedMessage = "The host has left, so the room has been closed."

// ParticipantsUpdate 是 participants_update 事件的负载。
type ParticipantsUpdate struct {
	Participants []string `json:"participants"`
	CreatorUID   string   `json:"creatorUid"`
}

// Progress 是 progress_update 事件的负载，也是 FinishStep 的返回值。
type Progress struct {
	FinishedCount     int `json:"finishedCount"`
	TotalParticipants int `json:"totalParticipants"`
}

type RoomClosed struct {
	Message string `json:"message"`
}

type DiscussionStarted struct {
	RoomID string `json:"roomId"`
}

package service

import (
	"discussion-room/internal/domain"
	"discussion-room/internal/repository"
)

// LeaveResult 描述离开房间事务的结果，连接层据此决定后续广播。
type LeaveResult string

const (
	LeaveNotFound     LeaveResult = "not_found"     // 房间不存在，什么都不做
	LeaveHostLeft     LeaveResult = "host_left"     // 房主离开，房间已删除
	LeaveDeletedEmpty LeaveResult = "deleted_empty" // 最后一位参加者离开，房间已删除
	LeaveUpdated      LeaveResult = "updated"       // 参加者列表已缩减
)

// 以下 Plan* 函数是房间状态迁移的纯函数：
// 输入只读快照，输出写集合，不修改快照本身，可被存储层安全地重复调用。

// PlanJoin 计算加入房间的写集合。
// 已在房间中的 uid 重新加入时只覆盖显示名，不占用新的名额。
func PlanJoin(snapshot *domain.Room, uid, name string) (*repository.RoomUpdate, error) {
	if snapshot == nil {
		return nil, ErrRoomNotFound
	}
	if !snapshot.HasParticipant(uid) && snapshot.IsFull() {
		return nil, ErrRoomFull
	}
	participants := snapshot.Clone().Participants
	participants[uid] = name
	return &repository.RoomUpdate{Participants: participants}, nil
}

// PlanLeave 计算离开房间的写集合。
// 房主离开时删除房间；普通参加者离开后房间为空也删除房间。
func PlanLeave(snapshot *domain.Room, uid string) (*repository.RoomUpdate, LeaveResult) {
	if snapshot == nil {
		return nil, LeaveNotFound
	}
	if uid == snapshot.CreatorUID {
		return &repository.RoomUpdate{Delete: true}, LeaveHostLeft
	}

	participants := snapshot.Clone().Participants
	delete(participants, uid)
	if len(participants) == 0 {
		return &repository.RoomUpdate{Delete: true}, LeaveDeletedEmpty
	}
	return &repository.RoomUpdate{Participants: participants}, LeaveUpdated
}

// PlanFinishStep 将 uid 标记为已完成当前步骤，并基于更新后的内存副本计算进度。
// 已离开的参加者留下的完成标记不会被清理，因此 FinishedCount 可能大于 TotalParticipants。
func PlanFinishStep(snapshot *domain.Room, uid string) (*repository.RoomUpdate, domain.Progress, error) {
	if snapshot == nil {
		return nil, domain.Progress{}, ErrRoomNotFound
	}
	finished := snapshot.Clone().FinishedUsers
	finished[uid] = true
	progress := domain.Progress{
		FinishedCount:     len(finished),
		TotalParticipants: len(snapshot.Participants),
	}
	return &repository.RoomUpdate{FinishedUsers: finished}, progress, nil
}

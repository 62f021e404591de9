package service

import (
	"errors"

	"discussion-room/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrServiceUnavailable = errors.New("service unavailable, please try again later")
)

// mapRepoError 将仓库层的错误映射到服务层定义的错误。
// 已经是服务层错误的直接返回（例如事务函数中返回的 ErrRoomFull）。
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, repository.ErrRoomNotFound), errors.Is(err, ErrRoomNotFound):
		return ErrRoomNotFound
	default:
		// 存储不可达、事务重试耗尽、上下文超时都归为暂时不可用
		return ErrServiceUnavailable
	}
}

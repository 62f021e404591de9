package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入的数据违反了唯一约束（房间 ID 已被占用）
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrTxConflict 表示事务在有限次数的重试后仍然因并发冲突而无法提交
	ErrTxConflict = errors.New("repository: transaction conflict, retries exhausted")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
)

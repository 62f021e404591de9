package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discussion-room/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 定义创建房间请求的结构体
type CreateRoomRequest struct {
	Username string `json:"username" binding:"required"`
	UID      string `json:"uid" binding:"required"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// CreateRoom 处理 POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: username and uid are required")
		return
	}

	roomID, err := h.roomService.CreateRoom(c.Request.Context(), req.Username, req.UID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, CreateRoomResponse{RoomID: roomID})
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	Username string `json:"username" binding:"required"`
	UID      string `json:"uid" binding:"required"`
}

// JoinRoomResponse 定义加入房间成功的响应结构体
type JoinRoomResponse struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// JoinRoom 处理 POST /api/rooms/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: roomId, username and uid are required")
		return
	}

	roomID, err := h.roomService.JoinRoom(c.Request.Context(), req.RoomID, req.UID, req.Username)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, JoinRoomResponse{RoomID: roomID, Message: "Joined room successfully"})
}

// UpdateSettingsRequest 定义房间设置请求的结构体
type UpdateSettingsRequest struct {
	RoomID   string `json:"roomId" binding:"required"`
	Topic    string `json:"topic" binding:"required"`
	Duration int    `json:"duration" binding:"required,gt=0"`
}

// UpdateSettings 处理 POST /api/rooms/settings
func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateSettings: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: roomId, topic and a positive duration are required")
		return
	}

	if err := h.roomService.UpdateSettings(c.Request.Context(), req.RoomID, req.Topic, req.Duration); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Settings updated and discussion started"})
}

// GetRoom 处理 GET /api/rooms/:roomId
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discussion-room/internal/agenda"
	"discussion-room/internal/service"
)

// HandleServiceError 把服务层错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, "Room not found")
	case errors.Is(err, service.ErrRoomFull):
		ErrorResponse(c, http.StatusForbidden, "Room is full")
	case errors.Is(err, service.ErrServiceUnavailable):
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, agenda.ErrRejected):
		// 调用方可以换个说法重新提交议题
		ErrorResponse(c, http.StatusUnprocessableEntity, "The agenda request was rejected, try rephrasing the topic")
	case errors.Is(err, agenda.ErrParse):
		ErrorResponse(c, http.StatusBadGateway, "The agenda service returned an unreadable agenda")
	case errors.Is(err, agenda.ErrServiceError):
		ErrorResponse(c, http.StatusBadGateway, "The agenda service is unavailable")
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

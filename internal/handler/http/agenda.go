package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"discussion-room/internal/service"
)

// AgendaHandler 处理议程生成请求
type AgendaHandler struct {
	agendaService *service.AgendaService
}

// NewAgendaHandler 创建 AgendaHandler 实例
func NewAgendaHandler(agendaService *service.AgendaService) *AgendaHandler {
	if agendaService == nil {
		panic("AgendaService cannot be nil for AgendaHandler")
	}
	return &AgendaHandler{agendaService: agendaService}
}

// GenerateAgendaRequest 定义议程生成请求的结构体
type GenerateAgendaRequest struct {
	Topic         string `json:"topic" binding:"required"`
	TotalDuration int    `json:"total_duration" binding:"required,gt=0"`
}

// GenerateAgenda 处理 POST /api/agenda，成功时返回步骤数组
func (h *AgendaHandler) GenerateAgenda(c *gin.Context) {
	var req GenerateAgendaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.GenerateAgenda: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: topic and a positive total_duration are required")
		return
	}

	steps, err := h.agendaService.GenerateAgenda(c.Request.Context(), req.Topic, req.TotalDuration)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, steps)
}

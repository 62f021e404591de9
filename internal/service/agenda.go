package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"discussion-room/internal/agenda"
)

// AgendaGenerator 是议程生成服务的抽象，由 agenda.Client 实现
type AgendaGenerator interface {
	Generate(ctx context.Context, topic string, totalDuration int) ([]agenda.Step, error)
}

// AgendaService 校验输入并调用外部议程生成服务。
// 失败不会自动重试，由调用方决定是否换个说法再试。
type AgendaService struct {
	generator AgendaGenerator
}

// NewAgendaService 创建 AgendaService 实例
func NewAgendaService(generator AgendaGenerator) *AgendaService {
	if generator == nil {
		panic("AgendaGenerator cannot be nil for AgendaService")
	}
	return &AgendaService{generator: generator}
}

// GenerateAgenda 为 topic 生成总时长 totalDuration 分钟的议程。
// 返回的错误保留 agenda.ErrServiceError / ErrRejected / ErrParse 以便区分。
func (s *AgendaService) GenerateAgenda(ctx context.Context, topic string, totalDuration int) ([]agenda.Step, error) {
	if isBlank(topic) || totalDuration <= 0 {
		return nil, fmt.Errorf("%w: topic and a positive total_duration are required", ErrInvalidInput)
	}

	steps, err := s.generator.Generate(ctx, topic, totalDuration)
	if err != nil {
		logrus.WithFields(logrus.Fields{"operation": "GenerateAgenda", "total_duration": totalDuration}).
			WithError(err).Warn("Agenda generation failed")
		return nil, err
	}
	return steps, nil
}

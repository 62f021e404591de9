package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discussion-room/internal/agenda"
	"discussion-room/internal/service"
	"discussion-room/internal/service/mocks"
)

func TestAgendaService_GenerateAgenda_Success(t *testing.T) {
	// Arrange
	gen := mocks.NewAgendaGenerator(t)
	svc := service.NewAgendaService(gen)
	ctx := context.Background()
	want := []agenda.Step{
		{StepName: "Diverge", PromptQuestion: "Q1", AllocatedTime: 10},
		{StepName: "Group", PromptQuestion: "Q2", AllocatedTime: 10},
		{StepName: "Decide", PromptQuestion: "Q3", AllocatedTime: 10},
	}
	gen.On("Generate", ctx, "X", 30).Return(want, nil).Once()

	// Act
	steps, err := svc.GenerateAgenda(ctx, "X", 30)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, want, steps, "步骤顺序应保持不变")
}

func TestAgendaService_GenerateAgenda_InvalidInput(t *testing.T) {
	gen := mocks.NewAgendaGenerator(t) // 输入非法时不应调用外部服务
	svc := service.NewAgendaService(gen)

	_, err := svc.GenerateAgenda(context.Background(), " ", 30)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = svc.GenerateAgenda(context.Background(), "X", 0)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestAgendaService_GenerateAgenda_PassesErrorKindsThrough(t *testing.T) {
	for _, kind := range []error{agenda.ErrServiceError, agenda.ErrRejected, agenda.ErrParse} {
		t.Run(kind.Error(), func(t *testing.T) {
			gen := mocks.NewAgendaGenerator(t)
			svc := service.NewAgendaService(gen)
			ctx := context.Background()
			gen.On("Generate", ctx, "X", 30).Return(nil, fmt.Errorf("%w: detail", kind)).Once()

			_, err := svc.GenerateAgenda(ctx, "X", 30)
			assert.ErrorIs(t, err, kind)
		})
	}
}

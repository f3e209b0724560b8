package mocks

import (
	"context"

	"github.com/benmeehan/heartbeat-agent/internal/notifications"
	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of the notifications.Notifier interface
type MockNotifier struct {
	mock.Mock
	NotifierName string
}

func (m *MockNotifier) Name() string {
	return m.NotifierName
}

func (m *MockNotifier) Notify(ctx context.Context, msg notifications.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(eventType string, payload interface{}) {
	m.Called(eventType, payload)
}

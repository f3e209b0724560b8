package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommander is a mock implementation of the Commander interface
type MockCommander struct {
	mock.Mock
}

func (m *MockCommander) SendCommand(ctx context.Context, actor, command string) error {
	args := m.Called(ctx, actor, command)
	return args.Error(0)
}

// MockProber is a mock implementation of the probe.Prober interface
type MockProber struct {
	mock.Mock
}

func (m *MockProber) Reachable(ctx context.Context, target string) bool {
	args := m.Called(ctx, target)
	return args.Bool(0)
}

// MockNetworkMonitor is a mock implementation of the NetworkMonitor interface
type MockNetworkMonitor struct {
	mock.Mock
}

func (m *MockNetworkMonitor) Status() map[string]bool {
	args := m.Called()
	return args.Get(0).(map[string]bool)
}

func (m *MockNetworkMonitor) TrippedTargets() []string {
	args := m.Called()
	tripped, _ := args.Get(0).([]string)
	return tripped
}

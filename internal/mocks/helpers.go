package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockDispatcherForTest creates a new mock Dispatcher for testing
func NewMockDispatcherForTest(t *testing.T) *MockDispatcher {
	ctrl := gomock.NewController(t)
	return NewMockDispatcher(ctrl)
}

// NewMockOpenerForTest creates a new mock Opener for testing
func NewMockOpenerForTest(t *testing.T) *MockOpener {
	ctrl := gomock.NewController(t)
	return NewMockOpener(ctrl)
}

package mocks

import (
	"context"

	"sheetbridge/core/remote"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of remote.Client
type Client struct {
	mock.Mock
}

func (m *Client) ListUnits(ctx context.Context, resourceID string) ([]remote.Unit, error) {
	args := m.Called(ctx, resourceID)
	if units, ok := args.Get(0).([]remote.Unit); ok {
		return units, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) FetchUnit(ctx context.Context, resourceID, unitID string) ([]byte, error) {
	args := m.Called(ctx, resourceID, unitID)
	if content, ok := args.Get(0).([]byte); ok {
		return content, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) BatchUpdate(ctx context.Context, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
	args := m.Called(ctx, resourceID, ops)
	if res, ok := args.Get(0).(*remote.BatchResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

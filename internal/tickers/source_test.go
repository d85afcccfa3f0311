package tickers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTickerSource is a mock remote symbol directory
type MockTickerSource struct {
	mock.Mock
}

func (m *MockTickerSource) ActiveSymbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockMirror is a mock local symbol mirror
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) ActiveSymbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockMirror) ReplaceSymbols(ctx context.Context, symbols []string) error {
	args := m.Called(ctx, symbols)
	return args.Error(0)
}

func TestMirroredSource_RemotePreferred(t *testing.T) {
	remote := &MockTickerSource{}
	local := &MockMirror{}

	universe := []string{"TSLA", "AAPL"}
	remote.On("ActiveSymbols", mock.Anything).Return(universe, nil)
	local.On("ReplaceSymbols", mock.Anything, universe).Return(nil)

	source := NewMirroredSource(remote, local)

	symbols, err := source.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, universe, symbols)

	// the remote universe is written through to the local mirror
	local.AssertCalled(t, "ReplaceSymbols", mock.Anything, universe)
}

func TestMirroredSource_RemoteFailureFallsBack(t *testing.T) {
	remote := &MockTickerSource{}
	local := &MockMirror{}

	remote.On("ActiveSymbols", mock.Anything).Return(nil, errors.New("api quota exceeded"))
	local.On("ActiveSymbols", mock.Anything).Return([]string{"TSLA"}, nil)

	source := NewMirroredSource(remote, local)

	symbols, err := source.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA"}, symbols)
	local.AssertNotCalled(t, "ReplaceSymbols", mock.Anything, mock.Anything)
}

func TestMirroredSource_MirrorWriteFailureNonFatal(t *testing.T) {
	remote := &MockTickerSource{}
	local := &MockMirror{}

	universe := []string{"TSLA"}
	remote.On("ActiveSymbols", mock.Anything).Return(universe, nil)
	local.On("ReplaceSymbols", mock.Anything, universe).Return(errors.New("db locked"))

	source := NewMirroredSource(remote, local)

	symbols, err := source.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, universe, symbols)
}

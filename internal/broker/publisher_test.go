package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type producerMock struct {
	mock.Mock
}

func (m *producerMock) Publish(ctx context.Context, topic string, key, value []byte) error {
	return m.Called(ctx, topic, key, value).Error(0)
}

func TestPublisher_RetriesUntilSuccess(t *testing.T) {
	pm := &producerMock{}
	pm.On("Publish", mock.Anything, "events", []byte("k"), []byte(`{"a":1}`)).Return(errors.New("not ready")).Twice()
	pm.On("Publish", mock.Anything, "events", []byte("k"), []byte(`{"a":1}`)).Return(nil).Once()

	p := NewPublisher(pm, "events").WithRetry(5, 0)
	require.NoError(t, p.PublishJSON(context.Background(), []byte("k"), map[string]int{"a": 1}))
	pm.AssertExpectations(t)
}

func TestPublisher_GivesUp(t *testing.T) {
	pm := &producerMock{}
	pm.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("down")).Times(3)

	p := NewPublisher(pm, "events").WithRetry(3, 0)
	err := p.PublishRaw(context.Background(), nil, []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "publish to events")
	pm.AssertExpectations(t)
}

func TestPublisher_StopsOnCancel(t *testing.T) {
	pm := &producerMock{}
	pm.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("down")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPublisher(pm, "events").PublishRaw(ctx, nil, []byte("x"))
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	pm.AssertExpectations(t)
}

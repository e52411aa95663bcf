package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/models"
	notifymocks "github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/notify/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Send_OK(t *testing.T) {
	s := &notifymocks.MockSender{}
	s.On("Send", mock.Anything, models.UserID("u1"), "hello").Return(nil).Once()

	d := NewDispatcher(s)
	require.NoError(t, d.Send(context.Background(), "u1", "hello"))
	require.Equal(t, Stats{Sent: 1}, d.Stats())
	s.AssertExpectations(t)
}

func TestDispatcher_Send_EmptyTextIsSkipped(t *testing.T) {
	s := &notifymocks.MockSender{}
	d := NewDispatcher(s)
	require.NoError(t, d.Send(context.Background(), "u1", ""))
	s.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_Send_FailureIsSendError(t *testing.T) {
	s := &notifymocks.MockSender{}
	s.On("Send", mock.Anything, models.UserID("u1"), "hello").Return(errors.New("conn reset")).Once()

	d := NewDispatcher(s)
	err := d.Send(context.Background(), "u1", "hello")
	require.Error(t, err)

	var se *SendError
	require.ErrorAs(t, err, &se)
	require.True(t, se.Retryable)
	require.Equal(t, models.UserID("u1"), se.To)
	require.Equal(t, Stats{Failed: 1}, d.Stats())
}

func TestDispatcher_Send_KeepsProviderSendError(t *testing.T) {
	orig := &SendError{To: "u1", Status: 401, Err: errors.New("bad token")}
	s := &notifymocks.MockSender{}
	s.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(orig).Once()

	err := NewDispatcher(s).Send(context.Background(), "u1", "x")
	var se *SendError
	require.ErrorAs(t, err, &se)
	require.Same(t, orig, se)
	require.Contains(t, se.Error(), "status 401")
}

func TestLogSender(t *testing.T) {
	require.NoError(t, LogSender{}.Send(context.Background(), "u", "x"))
}

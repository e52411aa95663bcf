package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type closingWriterMock struct {
	writerMock
	closed bool
}

func (m *closingWriterMock) Close() error {
	m.closed = true
	return nil
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestNewProducer_HashBalancedWriter() {
	p := NewProducer([]string{"localhost:0"})
	w, ok := p.w.(*kafka.Writer)
	s.Require().True(ok)
	s.Require().IsType(&kafka.Hash{}, w.Balancer)
	s.Require().True(w.AllowAutoTopicCreation)
	s.Require().NoError(p.Close())
}

func (s *ProducerSuite) TestPublish_KeyedBySender() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 &&
				msgs[0].Topic == "whatsapp.inbound" &&
				string(msgs[0].Key) == "919000000001" &&
				string(msgs[0].Value) == `{"payload":"track"}`
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "whatsapp.inbound", []byte("919000000001"), []byte(`{"payload":"track"}`)))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	want := errors.New("leader not available")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), "shipment.events", []byte("u|awb"), []byte("{}"))
	s.Require().ErrorIs(err, want)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestClose() {
	s.Require().NoError(s.p.Close())

	cw := &closingWriterMock{}
	s.Require().NoError(newProducerWithWriter(cw).Close())
	s.Require().True(cw.closed)
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}

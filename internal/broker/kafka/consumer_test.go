package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/BearBump/RiskSync/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed += len(msgs)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume_DecodesAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Value: []byte(`{"order_id":"42","old_status":"pending","new_status":"processing"}`)}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var got messages.OrderStatusChanged
	err := c.Consume(context.Background(), func(_ context.Context, m messages.OrderStatusChanged) error {
		got = m
		return nil
	})
	require.Error(t, err)
	require.Equal(t, "42", got.OrderID)
	require.Equal(t, "pending", got.OldStatus)
	require.Equal(t, "processing", got.NewStatus)
	require.Equal(t, 1, fr.committed)
}

func TestConsumer_Consume_SkipsMalformedMessage(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{
			{Value: []byte(`{broken`)},
			{Value: []byte(`{"order_id":"42","old_status":"pending","new_status":"processing"}`)},
		},
		err: errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var handled []string
	err := c.Consume(context.Background(), func(_ context.Context, m messages.OrderStatusChanged) error {
		handled = append(handled, m.OrderID)
		return nil
	})
	require.Error(t, err)

	// Битое сообщение пропущено и закоммичено, поток не остановился.
	require.Equal(t, []string{"42"}, handled)
	require.Equal(t, 2, fr.committed)
}

func TestConsumer_Consume_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Value: []byte(`{"order_id":"42"}`)}}}
	c := newConsumerWithReader(fr)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(_ context.Context, _ messages.OrderStatusChanged) error {
		return want
	})
	require.ErrorIs(t, err, want)
	require.Equal(t, 0, fr.committed)
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, "orders.status_changed", "risk-api")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}

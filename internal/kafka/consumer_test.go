package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	commitErr error
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	r.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func eventMessage(t *testing.T, offset int64, invoiceID string) kafka.Message {
	t.Helper()
	data, err := json.Marshal(NewSettlementEvent(EventSettlementConfirmed, invoiceID))
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: data}
}

func newTestConsumer(reader *fakeReader) *Consumer {
	return &Consumer{reader: reader, log: zap.NewNop(), attempts: 3}
}

func TestConsumer_CommitsAfterHandling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		messages: []kafka.Message{eventMessage(t, 1, "INV1"), {Offset: 2, Value: []byte("{")}, eventMessage(t, 3, "INV3")},
		cancel:   cancel,
	}

	var seen []string
	err := newTestConsumer(reader).Consume(ctx, func(_ context.Context, e SettlementEvent) error {
		seen = append(seen, e.InvoiceID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"INV1", "INV3"}, seen)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumer_RetriesThenSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{messages: []kafka.Message{eventMessage(t, 5, "INV5")}, cancel: cancel}

	calls := 0
	err := newTestConsumer(reader).Consume(ctx, func(context.Context, SettlementEvent) error {
		calls++
		return errors.New("smtp down")
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int64{5}, reader.committed)
}

func TestConsumer_RecoversOnRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{messages: []kafka.Message{eventMessage(t, 8, "INV8")}, cancel: cancel}

	calls := 0
	err := newTestConsumer(reader).Consume(ctx, func(context.Context, SettlementEvent) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestConsumer_CommitFailure(t *testing.T) {
	reader := &fakeReader{
		messages:  []kafka.Message{eventMessage(t, 4, "INV4")},
		commitErr: errors.New("rebalance"),
		cancel:    func() {},
	}

	err := newTestConsumer(reader).Consume(context.Background(), func(context.Context, SettlementEvent) error { return nil })

	assert.ErrorContains(t, err, "commit offset 4")
}

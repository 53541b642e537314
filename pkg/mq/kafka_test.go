package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestSendMessageEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)

	err := p.SendMessage(context.Background(), "cart.events", "@RocketShoes:cart", map[string]int{"product_id": 3})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "cart.events", w.msgs[0].Topic)
	assert.Equal(t, "@RocketShoes:cart", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"product_id":3}`, string(w.msgs[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestSendMessageErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewProducerWithWriter(w)

	assert.Error(t, p.SendMessage(context.Background(), "t", "k", "v"))
	assert.Error(t, p.SendMessage(context.Background(), "t", "k", func() {}))
}

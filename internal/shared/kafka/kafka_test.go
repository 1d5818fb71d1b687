package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, Brokers(" a:9092, ,b:9092 "))
	assert.Empty(t, Brokers(""))
}

func TestWriteJSON(t *testing.T) {
	w := &captureWriter{}
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	err := WriteJSON(context.Background(), w, "7", map[string]int{"bet_id": 7}, at)
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "7", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"bet_id":7}`, string(w.msgs[0].Value))
	assert.Equal(t, at, w.msgs[0].Time)

	err = WriteJSON(context.Background(), w, "8", make(chan int), at)
	assert.ErrorContains(t, err, "encode 8")
	assert.Len(t, w.msgs, 1)
}

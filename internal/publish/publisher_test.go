package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partial-matching/internal/matching"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleTrades() []matching.Trade {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return []matching.Trade{
		{TradeID: "t_1", FundID: "EQ", BuyOrderID: "b1", SellOrderID: "s1", Quantity: 60, Price: 10, PriceSource: matching.PriceSourceResting, MatchedAt: at},
		{TradeID: "t_2", FundID: "BOND", BuyOrderID: "b2", SellOrderID: "s2", Quantity: 5, Price: 7, PriceSource: matching.PriceSourceNAV, MatchedAt: at},
	}
}

func TestKafkaPublisher_WritesOneMessagePerTrade(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.PublishTrades(context.Background(), "eng_1", sampleTrades()))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "EQ", string(w.msgs[0].Key))
	assert.Equal(t, "BOND", string(w.msgs[1].Key))

	var msg TradeMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &msg))
	assert.Equal(t, "eng_1", msg.EngineID)
	assert.Equal(t, int64(60), msg.Quantity)
	assert.Equal(t, "RESTING", msg.PriceSource)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_EmptyAndFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w}

	assert.NoError(t, p.PublishTrades(context.Background(), "eng_1", nil))

	err := p.PublishTrades(context.Background(), "eng_1", sampleTrades())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	require.NoError(t, p.PublishTrades(context.Background(), "eng_1", sampleTrades()))
	assert.Len(t, p.Messages(), 2)

	p.FailWith(errors.New("boom"))
	assert.Error(t, p.PublishTrades(context.Background(), "eng_1", sampleTrades()))
	assert.Len(t, p.Messages(), 2)
}

package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"partial-matching/internal/matching"
)

// TradePublisher receives the trades of every committed matching pass
type TradePublisher interface {
	PublishTrades(ctx context.Context, engineID string, trades []matching.Trade) error
	Close() error
}

// TradeMessage is the wire format of one published trade
type TradeMessage struct {
	EngineID      string    `json:"engine_id"`
	TradeID       string    `json:"trade_id"`
	FundID        string    `json:"fund_id"`
	BuyOrderID    string    `json:"buy_order_id"`
	SellOrderID   string    `json:"sell_order_id"`
	BuyAccountID  string    `json:"buy_account_id"`
	SellAccountID string    `json:"sell_account_id"`
	Quantity      int64     `json:"matched_quantity"`
	Price         int64     `json:"execution_price"`
	PriceSource   string    `json:"price_source"`
	MatchedAt     time.Time `json:"matched_at"`
}

// NewTradeMessage converts a trade to its wire format
func NewTradeMessage(engineID string, t matching.Trade) TradeMessage {
	return TradeMessage{
		EngineID:      engineID,
		TradeID:       t.TradeID,
		FundID:        t.FundID,
		BuyOrderID:    t.BuyOrderID,
		SellOrderID:   t.SellOrderID,
		BuyAccountID:  t.BuyAccountID,
		SellAccountID: t.SellAccountID,
		Quantity:      t.Quantity,
		Price:         t.Price,
		PriceSource:   string(t.PriceSource),
		MatchedAt:     t.MatchedAt,
	}
}

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes trades to a Kafka topic, keyed by fund so a fund's trades stay ordered
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) PublishTrades(ctx context.Context, engineID string, trades []matching.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	msgs, err := EncodeTrades(engineID, trades)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d trades: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EncodeTrades builds one Kafka message per trade
func EncodeTrades(engineID string, trades []matching.Trade) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		value, err := json.Marshal(NewTradeMessage(engineID, t))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trade %s: %w", t.TradeID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(t.FundID),
			Value: value,
			Time:  t.MatchedAt,
		})
	}
	return msgs, nil
}

// MemoryPublisher keeps published trades in memory
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []TradeMessage
	err      error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith makes subsequent publishes return err
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryPublisher) PublishTrades(ctx context.Context, engineID string, trades []matching.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	for _, t := range trades {
		p.messages = append(p.messages, NewTradeMessage(engineID, t))
	}
	return nil
}

// Messages returns a copy of everything published so far
func (p *MemoryPublisher) Messages() []TradeMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TradeMessage(nil), p.messages...)
}

func (p *MemoryPublisher) Close() error { return nil }

// NopPublisher drops trades
type NopPublisher struct{}

func (NopPublisher) PublishTrades(context.Context, string, []matching.Trade) error { return nil }
func (NopPublisher) Close() error                                               { return nil }

// Package feed publishes chat mutations to Kafka for downstream consumers
// (history indexing, analytics). Publishing is write-behind: events are
// buffered and flushed in batches.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/services/directory"
	"chatcore/services/messages"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

const (
	bufferSize    = 1000
	flushSize     = 100
	flushInterval = 100 * time.Millisecond

	maxRetries   = 3
	retryBackoff = 5 * time.Second
)

type envelope struct {
	Kind      string            `json:"kind"`
	ChatID    string            `json:"chatId"`
	MessageID string            `json:"messageId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	Chat      *directory.Chat   `json:"chat,omitempty"`
	Message   *messages.Message `json:"message,omitempty"`
	At        time.Time         `json:"at"`
}

// Feed batches mutation envelopes and produces them to a Kafka topic, keyed
// by chat id so each chat's history stays ordered within its partition.
type Feed struct {
	producer *kafka.Producer
	topic    string
	buffer   chan *envelope

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(addr, topic string) (*Feed, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": addr,
		"client.id":         "chatcore-feed",
		"acks":              "all",
		"retries":           3,
		"retry.backoff.ms":  100,
	})
	if err != nil {
		return nil, err
	}

	f := &Feed{
		producer: p,
		topic:    topic,
		buffer:   make(chan *envelope, bufferSize),
		shutdown: make(chan struct{}),
	}

	f.wg.Add(1)
	go f.writer()

	return f, nil
}

func (f *Feed) Name() string { return "kafka-feed" }

func (f *Feed) ChatCreated(ctx context.Context, chat directory.Chat) error {
	return f.enqueue(&envelope{Kind: "chat_created", ChatID: chat.ID, Chat: &chat, At: time.Now()})
}

func (f *Feed) MessageAppended(ctx context.Context, msg messages.Message) error {
	return f.enqueue(&envelope{Kind: "message", ChatID: msg.ChatID, MessageID: msg.ID, Message: &msg, At: time.Now()})
}

func (f *Feed) MessageSeen(ctx context.Context, chatID, messageID, userID string) error {
	return f.enqueue(&envelope{Kind: "message_seen", ChatID: chatID, MessageID: messageID, UserID: userID, At: time.Now()})
}

func (f *Feed) ChatRefreshed(ctx context.Context, chatID string) error {
	// Cache hints carry no durable information
	return nil
}

func (f *Feed) enqueue(env *envelope) error {
	select {
	case f.buffer <- env:
		return nil
	default:
		return fmt.Errorf("feed buffer full, dropping %s event for chat %s", env.Kind, env.ChatID)
	}
}

// writer batches buffered envelopes and flushes them periodically
func (f *Feed) writer() {
	defer f.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*envelope, 0, flushSize)

	for {
		select {
		case env := <-f.buffer:
			batch = append(batch, env)
			if len(batch) >= flushSize {
				f.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				f.flushBatch(batch)
				batch = batch[:0]
			}

		case <-f.shutdown:
			// Drain whatever is left before exiting
			for {
				select {
				case env := <-f.buffer:
					batch = append(batch, env)
				default:
					if len(batch) > 0 {
						f.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

func (f *Feed) flushBatch(batch []*envelope) {
	metrics.FeedBatchSize.Observe(float64(len(batch)))

	for _, env := range batch {
		if err := f.produceWithRetry(env); err != nil {
			logger.WithFields(map[string]any{
				"kind":    env.Kind,
				"chat_id": env.ChatID,
				"error":   err.Error(),
			}).Error("failed to publish mutation after retries")
		}
	}
}

// produceWithRetry sends one envelope, waiting for delivery confirmation
func (f *Feed) produceWithRetry(env *envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	topic := f.topic
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(env.ChatID),
		Value:          payload,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		deliveryChan := make(chan kafka.Event, 1)

		if err := f.producer.Produce(msg, deliveryChan); err != nil {
			lastErr = err
			time.Sleep(retryBackoff * time.Duration(attempt+1))
			continue
		}

		select {
		case e := <-deliveryChan:
			m := e.(*kafka.Message)
			if m.TopicPartition.Error != nil {
				lastErr = m.TopicPartition.Error
				time.Sleep(retryBackoff * time.Duration(attempt+1))
				continue
			}
			return nil
		case <-time.After(5 * time.Second):
			lastErr = fmt.Errorf("delivery timeout")
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Close flushes buffered events and shuts down the producer
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		close(f.shutdown)
		f.wg.Wait()
		f.producer.Close()
	})
	return nil
}

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TopicScheduledCampaigns carries ids of scheduled campaigns that are due.
const TopicScheduledCampaigns = "scheduled_campaigns"

// Handler processes one message body. A non-nil error asks for redelivery.
type Handler func(body []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue is a single-process queue with retry, used when no broker is configured
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	log      zerolog.Logger

	MaxRetries int
	Backoff    time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		log:        log,
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
	}
}

// job wraps a message body with retry info
type job struct {
	Topic      string
	Body       []byte
	RetryCount int
	MaxRetries int
}

// Publish hands the body to every subscriber of topic
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		j := job{Topic: topic, Body: body, MaxRetries: q.MaxRetries}
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.processJob(handler, j)
		}()
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler Handler, j job) {
	for j.RetryCount <= j.MaxRetries {
		err := handler(j.Body)
		if err == nil {
			q.log.Debug().Str("topic", j.Topic).Msg("job processed")
			return
		}

		j.RetryCount++
		q.log.Warn().Err(err).Str("topic", j.Topic).Int("attempt", j.RetryCount).Int("max_retries", j.MaxRetries).Msg("job failed")

		if j.RetryCount > j.MaxRetries {
			q.log.Error().Str("topic", j.Topic).Int("attempts", j.RetryCount).Msg("job permanently failed")
			return
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(j.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close waits for in-flight jobs.
func (q *InMemoryQueue) Close() error {
	q.wg.Wait()
	return nil
}

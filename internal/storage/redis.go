// Package storage держит живые статусы Output-узлов в Redis и раздаёт
// их подписчикам через pub/sub.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Artflow/internal/domain"
)

// DefaultTTL это время жизни снимка статусов run.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "artflow:run:"

// Типы событий.
const (
	EventOutputStatus = "output.status"
	EventRunFinished  = "run.finished"
)

// Event это сообщение в канале run.
type Event struct {
	Type      string               `json:"type"`
	RunID     uuid.UUID            `json:"run_id"`
	NodeID    string               `json:"node_id,omitempty"`
	Status    *domain.OutputStatus `json:"status,omitempty"`
	RunStatus domain.RunStatus     `json:"run_status,omitempty"`
}

// NewClient подключается к Redis по URL и проверяет соединение.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// StatusStore хранит последний статус каждого Output-узла run.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStatusStore создаёт StatusStore. ttl <= 0 означает DefaultTTL.
func NewStatusStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusStore{client: client, ttl: ttl, logger: logger}
}

func outputsKey(runID uuid.UUID) string {
	return keyPrefix + runID.String() + ":outputs"
}

func eventsChannel(runID uuid.UUID) string {
	return keyPrefix + runID.String() + ":events"
}

// Save заменяет статус узла в снимке и публикует событие.
func (s *StatusStore) Save(ctx context.Context, runID uuid.UUID, nodeID string, status domain.OutputStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	key := outputsKey(runID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, nodeID, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save status: %w", err)
	}

	return s.publish(ctx, Event{Type: EventOutputStatus, RunID: runID, NodeID: nodeID, Status: &status})
}

// PublishRunFinished публикует событие завершения run.
func (s *StatusStore) PublishRunFinished(ctx context.Context, runID uuid.UUID, status domain.RunStatus) error {
	return s.publish(ctx, Event{Type: EventRunFinished, RunID: runID, RunStatus: status})
}

func (s *StatusStore) publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, eventsChannel(ev.RunID), data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Snapshot возвращает текущие статусы узлов run. Пустой map, если снимка нет.
func (s *StatusStore) Snapshot(ctx context.Context, runID uuid.UUID) (map[string]domain.OutputStatus, error) {
	raw, err := s.client.HGetAll(ctx, outputsKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	out := make(map[string]domain.OutputStatus, len(raw))
	for nodeID, data := range raw {
		var st domain.OutputStatus
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			s.logger.WarnContext(ctx, "skipping malformed status", "run_id", runID, "node_id", nodeID, "error", err)
			continue
		}
		out[nodeID] = st
	}
	return out, nil
}

// Subscription это подписка на события run.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe подписывается на события run. Подписка активна после возврата.
func (s *StatusStore) Subscribe(ctx context.Context, runID uuid.UUID) (*Subscription, error) {
	pubsub := s.client.Subscribe(ctx, eventsChannel(runID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	sub := &Subscription{pubsub: pubsub, events: make(chan Event, 16), done: make(chan struct{})}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("skipping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case sub.events <- ev:
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}

// Events возвращает канал событий. Канал закрывается после Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close отменяет подписку.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

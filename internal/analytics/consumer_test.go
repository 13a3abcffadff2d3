package analytics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStore struct {
	mu       sync.Mutex
	created  []*analytics.LinkCreatedEvent
	visited  []*analytics.LinkVisitedEvent
	visitErr error
	done     chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{done: make(chan struct{}, 10)}
}

func (m *mockStore) RecordCreated(_ context.Context, event *analytics.LinkCreatedEvent) error {
	m.mu.Lock()
	m.created = append(m.created, event)
	m.mu.Unlock()

	select {
	case m.done <- struct{}{}:
	default:
	}

	return nil
}

func (m *mockStore) RecordVisit(_ context.Context, event *analytics.LinkVisitedEvent) error {
	m.mu.Lock()
	m.visited = append(m.visited, event)
	m.mu.Unlock()

	select {
	case m.done <- struct{}{}:
	default:
	}

	return m.visitErr
}

func (m *mockStore) Stats(_ context.Context, code string) (*analytics.Stats, error) {
	return &analytics.Stats{Code: code}, nil
}

func (m *mockStore) wait(t *testing.T, n int) {
	t.Helper()

	for range n {
		select {
		case <-m.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()

	return gochannel.NewGoChannel(gochannel.Config{}, messaging.NewZapLogger(zap.NewNop()))
}

func TestPublishersAndConsumers(t *testing.T) {
	t.Run("routes each event type to the store", func(t *testing.T) {
		pubSub := newPubSub(t)
		store := newMockStore()
		group := messaging.NewConsumerGroup(pubSub, zap.NewNop())
		analytics.RegisterConsumers(group, store, zap.NewNop())

		require.NoError(t, group.Start(context.Background()))

		t.Cleanup(func() { _ = group.Shutdown() })

		publishers := analytics.NewPublishers(pubSub)
		ttl := 60

		require.NoError(t, publishers.LinkCreated(context.Background(), &analytics.LinkCreatedEvent{
			Code:          "abc123",
			OriginalURL:   "https://example.com",
			IsCustomAlias: true,
			TTLSeconds:    &ttl,
		}))
		require.NoError(t, publishers.LinkVisited(context.Background(), &analytics.LinkVisitedEvent{
			Code:     "abc123",
			ClientIP: "10.0.0.1",
		}))

		store.wait(t, 2)

		store.mu.Lock()
		defer store.mu.Unlock()

		require.Len(t, store.created, 1)
		assert.Equal(t, "abc123", store.created[0].Code)
		assert.True(t, store.created[0].IsCustomAlias)
		assert.Equal(t, 60, *store.created[0].TTLSeconds)

		require.Len(t, store.visited, 1)
		assert.Equal(t, "10.0.0.1", store.visited[0].ClientIP)
	})

	t.Run("redelivers when the store fails", func(t *testing.T) {
		pubSub := newPubSub(t)
		store := newMockStore()
		store.visitErr = errors.New("store error")
		group := messaging.NewConsumerGroup(pubSub, zap.NewNop())
		analytics.RegisterConsumers(group, store, zap.NewNop())

		require.NoError(t, group.Start(context.Background()))

		publishers := analytics.NewPublishers(pubSub)
		require.NoError(t, publishers.LinkVisited(context.Background(), &analytics.LinkVisitedEvent{Code: "abc123"}))

		store.wait(t, 2)

		require.NoError(t, group.Shutdown())
	})

	t.Run("topics are distinct", func(t *testing.T) {
		assert.NotEqual(t, analytics.TopicLinkCreated, analytics.TopicLinkVisited)
	})
}

package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

// Publishers are the typed publish functions for analytics events.
type Publishers struct {
	LinkCreated messaging.Publish[LinkCreatedEvent]
	LinkVisited messaging.Publish[LinkVisitedEvent]
}

// NewPublishers binds both analytics topics to a publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	return Publishers{
		LinkCreated: messaging.NewPublishFunc[LinkCreatedEvent](publisher, TopicLinkCreated),
		LinkVisited: messaging.NewPublishFunc[LinkVisitedEvent](publisher, TopicLinkVisited),
	}
}

// RegisterConsumers adds one consumer per analytics topic to the group, each persisting
// into the store.
func RegisterConsumers(group *messaging.ConsumerGroup, store Store, logger *zap.Logger) {
	sub := group.Subscriber()

	group.Add(messaging.NewConsumer[LinkCreatedEvent](sub, TopicLinkCreated, store.RecordCreated, logger))
	group.Add(messaging.NewConsumer[LinkVisitedEvent](sub, TopicLinkVisited, store.RecordVisit, logger))
}

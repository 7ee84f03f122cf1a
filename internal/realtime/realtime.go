// Package realtime delivers change notifications for stored entities to in-process
// subscribers, regardless of whether the change came from this process or from
// another one through postgres LISTEN/NOTIFY.
package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"
)

const EntityRegistration = "registration"

type Event struct {
	Entity        string `json:"entity"`
	ID            string `json:"id"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Status        string `json:"status,omitempty"`
}

type Subscription interface {
	Events() <-chan Event
	Close()
}

// Subscriber hands out subscriptions scoped to one entity type. Subscriptions are
// cheap; a closed one is replaced by subscribing again.
type Subscriber interface {
	Subscribe(entity string) Subscription
}

type Publisher interface {
	Publish(ev Event)
}

const subscriptionBuffer = 64

// Broker is an in-process fan-out of events to subscribers.
type Broker struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
	log  logrus.FieldLogger
}

func NewBroker(log logrus.FieldLogger) *Broker {
	return &Broker{subs: make(map[*subscription]struct{}), log: log}
}

type subscription struct {
	broker *Broker
	entity string
	ch     chan Event
	once   sync.Once
}

func (s *subscription) Events() <-chan Event { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		close(s.ch)
		s.broker.mu.Unlock()
	})
}

func (b *Broker) Subscribe(entity string) Subscription {
	s := &subscription{broker: b, entity: entity, ch: make(chan Event, subscriptionBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish never blocks. A subscriber that has fallen a full buffer behind misses the
// event; its view is corrected on the next reload.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s.entity != ev.Entity {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.log.WithField("entity", ev.Entity).WithField("id", ev.ID).Warn("realtime subscriber full, event dropped")
		}
	}
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

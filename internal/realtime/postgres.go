package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PGBridge forwards postgres NOTIFY payloads from one channel into a Publisher.
type PGBridge struct {
	dsn     string
	channel string
	pub     Publisher
	log     logrus.FieldLogger
}

func NewPGBridge(dsn, channel string, pub Publisher, log logrus.FieldLogger) *PGBridge {
	return &PGBridge{
		dsn:     dsn,
		channel: channel,
		pub:     pub,
		log:     log.WithField("channel", channel),
	}
}

// Run listens until ctx is cancelled.
func (b *PGBridge) Run(ctx context.Context) error {
	listener := pq.NewListener(b.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.log.WithError(err).Warn("realtime listener connection event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(b.channel); err != nil {
		return fmt.Errorf("listen %s: %w", b.channel, err)
	}
	b.log.Info("realtime listener started")

	for {
		select {
		case <-ctx.Done():
			b.log.Info("realtime listener stopped")
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; anything missed meanwhile is picked up by reloads.
			if n == nil {
				continue
			}
			ev, err := DecodeEvent(n.Extra)
			if err != nil {
				b.log.WithError(err).Warn("ignoring malformed realtime payload")
				continue
			}
			b.pub.Publish(ev)
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					b.log.WithError(err).Warn("realtime listener ping failed")
				}
			}()
		}
	}
}

func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Entity == "" || ev.ID == "" {
		return Event{}, fmt.Errorf("payload missing entity or id")
	}
	return ev, nil
}

package services

import (
	"sync"

	"camp-ops-backend/internal/realtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RegistrationSync keeps the console's payment and lifecycle statuses in step with
// changes made elsewhere (the accounting screen, another instance) without polling.
type RegistrationSync struct {
	source  realtime.Subscriber
	console *AttendanceConsole
	log     logrus.FieldLogger

	mu   sync.Mutex
	sub  realtime.Subscription
	done chan struct{}
}

func NewRegistrationSync(source realtime.Subscriber, console *AttendanceConsole, log logrus.FieldLogger) *RegistrationSync {
	return &RegistrationSync{source: source, console: console, log: log}
}

// Start subscribes to registration events. Calling Start on a running sync is a no-op.
func (s *RegistrationSync) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return
	}
	s.sub = s.source.Subscribe(realtime.EntityRegistration)
	s.done = make(chan struct{})
	go s.consume(s.sub, s.done)
}

// Stop unsubscribes and waits for the consumer goroutine to exit. The sync can be
// started again afterwards.
func (s *RegistrationSync) Stop() {
	s.mu.Lock()
	sub, done := s.sub, s.done
	s.sub, s.done = nil, nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	<-done
}

func (s *RegistrationSync) consume(sub realtime.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		s.apply(ev)
	}
}

func (s *RegistrationSync) apply(ev realtime.Event) {
	if ev.PaymentStatus == "" && ev.Status == "" {
		return
	}
	id, err := uuid.Parse(ev.ID)
	if err != nil {
		s.log.WithField("id", ev.ID).Warn("ignoring registration event with invalid id")
		return
	}
	log := s.log.WithField("registration_id", id)
	if ev.PaymentStatus != "" {
		if n := s.console.ApplyPaymentStatus(id, ev.PaymentStatus); n > 0 {
			log.WithFields(logrus.Fields{"payment_status": ev.PaymentStatus, "boards": n}).
				Debug("payment status patched from realtime event")
		}
	}
	if ev.Status != "" {
		if n := s.console.ApplyLifecycleStatus(id, ev.Status); n > 0 {
			log.WithFields(logrus.Fields{"status": ev.Status, "boards": n}).
				Info("registration status patched from realtime event")
		}
	}
}

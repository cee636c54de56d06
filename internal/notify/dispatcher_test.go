package notify

import (
	"context"
	"sync"
	"testing"

	"crm_followup_backend/internal/events"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

type recordedMessage struct {
	To      string
	Subject string
	Body    string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []recordedMessage
}

func (s *recordingSender) Send(_ context.Context, toEmail, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recordedMessage{To: toEmail, Subject: subject, Body: body})
	return nil
}

type staticDirectory struct {
	emails map[uuid.UUID]string
}

func (d staticDirectory) AdvisorEmail(_ context.Context, advisorID uuid.UUID) (string, error) {
	return d.emails[advisorID], nil
}

func TestDispatcherReassignedNotifiesBothAdvisors(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	sender := &recordingSender{}
	d := NewDispatcher(sender, staticDirectory{emails: map[uuid.UUID]string{
		from: "from@example.com",
		to:   "to@example.com",
	}}, logger.New("test"))

	bus := events.NewInMemoryBus(logger.New("test"))
	d.Subscribe(bus)

	err := bus.PublishSync(context.Background(), events.ProspectReassigned{
		BaseEvent:     events.NewBaseEvent(),
		ProspectID:    uuid.New(),
		FromAdvisorID: from,
		ToAdvisorID:   to,
		Reassignments: 1,
		Reason:        "Overdue",
	})
	if err != nil {
		t.Fatalf("PublishSync returned error: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2 (gaining and losing advisor)", len(sender.sent))
	}
	recipients := map[string]bool{}
	for _, m := range sender.sent {
		recipients[m.To] = true
	}
	if !recipients["from@example.com"] || !recipients["to@example.com"] {
		t.Fatalf("wrong recipients: %+v", sender.sent)
	}
}

func TestDispatcherSkipsUnknownAdvisor(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, staticDirectory{emails: map[uuid.UUID]string{}}, logger.New("test"))

	bus := events.NewInMemoryBus(logger.New("test"))
	d.Subscribe(bus)

	err := bus.PublishSync(context.Background(), events.ProspectClaimed{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: uuid.New(),
		AdvisorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("PublishSync returned error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("message sent for advisor with no address: %+v", sender.sent)
	}
}

func TestDispatcherReleasedNotifiesLosingAdvisor(t *testing.T) {
	from := uuid.New()
	sender := &recordingSender{}
	d := NewDispatcher(sender, staticDirectory{emails: map[uuid.UUID]string{
		from: "from@example.com",
	}}, logger.New("test"))

	bus := events.NewInMemoryBus(logger.New("test"))
	d.Subscribe(bus)

	err := bus.PublishSync(context.Background(), events.ProspectReleasedToPool{
		BaseEvent:     events.NewBaseEvent(),
		ProspectID:    uuid.New(),
		FromAdvisorID: from,
		Reassignments: 2,
		Reason:        "Overdue",
	})
	if err != nil {
		t.Fatalf("PublishSync returned error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "from@example.com" {
		t.Fatalf("unexpected messages: %+v", sender.sent)
	}
}

package audit

import (
	"errors"
	"testing"
	"time"
)

func TestPublishInvokesOnlyHandlersForMatchingEventType(t *testing.T) {
	b := NewBus()
	var snapshotCalls, ticketCalls int
	b.Subscribe(EventSnapshotPersisted, func(e Event) error { snapshotCalls++; return nil })
	b.Subscribe(EventTicketDecided, func(e Event) error { ticketCalls++; return nil })

	b.Publish(Event{ID: "1", Type: EventSnapshotPersisted, Timestamp: time.Now()})

	if snapshotCalls != 1 {
		t.Errorf("snapshotCalls = %d, want 1", snapshotCalls)
	}
	if ticketCalls != 0 {
		t.Errorf("ticketCalls = %d, want 0 for an unrelated event type", ticketCalls)
	}
}

func TestPublishInvokesHandlersInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.Subscribe(EventModelPublished, func(e Event) error { order = append(order, 1); return nil })
	b.Subscribe(EventModelPublished, func(e Event) error { order = append(order, 2); return nil })
	b.Subscribe(EventModelPublished, func(e Event) error { order = append(order, 3); return nil })

	b.Publish(Event{Type: EventModelPublished})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("handler invocation order = %v, want [1 2 3]", order)
	}
}

func TestPublishContinuesToLaterHandlersAfterAnError(t *testing.T) {
	b := NewBus()
	var secondCalled bool
	b.Subscribe(EventTicketDecided, func(e Event) error { return errors.New("boom") })
	b.Subscribe(EventTicketDecided, func(e Event) error { secondCalled = true; return nil })

	b.Publish(Event{Type: EventTicketDecided})

	if !secondCalled {
		t.Error("second handler was not called after the first handler returned an error")
	}
}

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	b := NewBus()
	b.Publish(Event{Type: EventCalibrationActivated})
}

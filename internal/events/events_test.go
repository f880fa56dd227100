package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventStepChanged)

	bus.PublishStepChanged("type-and-provider", "options", 1, false)

	select {
	case received := <-ch:
		step, ok := received.(*StepChangedEvent)
		if !ok {
			t.Fatal("Expected StepChangedEvent")
		}
		if step.To != "options" {
			t.Errorf("Expected step 'options', got '%s'", step.To)
		}
		if step.CompletedSteps != 1 {
			t.Errorf("Expected 1 completed step, got %d", step.CompletedSteps)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventLog)
	ch2 := bus.Subscribe(EventLog)

	bus.PublishLog(InfoLevel, "Test log", nil)

	received1 := false
	received2 := false

	select {
	case <-ch1:
		received1 = true
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-ch2:
		received2 = true
	case <-time.After(100 * time.Millisecond):
	}

	if !received1 || !received2 {
		t.Error("Not all subscribers received the event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	validationCh := bus.Subscribe(EventValidation)
	logCh := bus.Subscribe(EventLog)

	bus.PublishValidation(1, "pending", nil)

	select {
	case <-validationCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Validation subscriber didn't receive event")
	}

	select {
	case <-logCh:
		t.Error("Log subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.PublishCommit("st-1", true, nil)
	bus.PublishLog(InfoLevel, "done", nil)

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventValidation)

	for i := 0; i < 10; i++ {
		bus.PublishValidation(uint64(i), "pending", nil)
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("Expected the 2 buffered events, got %d", count)
	}
	if dropped := bus.GetDroppedEventCount(); dropped != 8 {
		t.Errorf("Expected 8 dropped events, got %d", dropped)
	}
	if reset := bus.ResetDroppedEventCount(); reset != 8 || bus.GetDroppedEventCount() != 0 {
		t.Errorf("ResetDroppedEventCount() = %d", reset)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventClosed)

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishClosed(true)

	if _, ok := <-bus.SubscribeAll(); ok {
		t.Error("Subscribing after close should return a closed channel")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventCredentials)
	bus.Unsubscribe(EventCredentials, ch)

	bus.PublishCredentials("st-1", "saved", []string{"secret_access_key"}, nil)

	select {
	case <-ch:
		t.Error("Unsubscribed channel received an event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}

func TestConvenienceMethods(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	credCh := bus.Subscribe(EventCredentials)
	commitCh := bus.Subscribe(EventCommit)

	boom := errors.New("boom")
	bus.PublishCredentials("st-1", "failed", []string{"pass"}, boom)

	select {
	case event := <-credCh:
		cred, ok := event.(*CredentialsEvent)
		if !ok {
			t.Fatal("Expected CredentialsEvent")
		}
		if cred.Action != "failed" || !errors.Is(cred.Error, boom) {
			t.Errorf("Unexpected credentials event %+v", cred)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for credentials event")
	}

	bus.PublishCommit("st-2", false, nil)

	select {
	case event := <-commitCh:
		commit, ok := event.(*CommitEvent)
		if !ok {
			t.Fatal("Expected CommitEvent")
		}
		if commit.StorageID != "st-2" || commit.Created {
			t.Errorf("Unexpected commit event %+v", commit)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for commit event")
	}
}

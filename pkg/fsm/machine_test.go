package fsm

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStateMachine_Deadlock(t *testing.T) {
	sm := New(State("initial"))

	sm.AddTransition(State("initial"), State("intermediate"), Event("first"), func(event Event, args ...interface{}) error {
		return sm.Fire(Event("second"))
	})

	sm.AddTransition(State("intermediate"), State("final"), Event("second"), nil)

	done := make(chan bool)
	go func() {
		err := sm.Fire(Event("first"))
		if err != nil {
			t.Errorf("Fire failed: %v", err)
		}
		done <- true
	}()

	select {
	case <-done:
		if sm.Current() != State("final") {
			t.Errorf("Expected state final, got %s", sm.Current())
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Deadlock detected: Fire did not return within 1 second")
	}
}

func TestStateMachine_Basic(t *testing.T) {
	sm := New(State("off"))
	sm.AddTransition(State("off"), State("on"), Event("push"), nil)

	if !sm.Can(Event("push")) {
		t.Error("Expected push to be allowed from off")
	}

	if err := sm.Fire(Event("push")); err != nil {
		t.Fatal(err)
	}

	if sm.Current() != State("on") {
		t.Errorf("Expected on, got %s", sm.Current())
	}
}

func TestStateMachine_InvalidTransition(t *testing.T) {
	sm := New(State("start"))
	if err := sm.Fire(Event("unknown")); err == nil {
		t.Fatal("Expected error for unknown event")
	}
}

func TestStateMachine_HandlerError(t *testing.T) {
	sm := New(State("A"))
	sm.AddTransition(State("A"), State("B"), Event("go"), func(event Event, args ...interface{}) error {
		return fmt.Errorf("handler failed")
	})

	err := sm.Fire(Event("go"))
	if err == nil || err.Error() != "handler failed" {
		t.Fatalf("Expected handler failed error, got %v", err)
	}

	if sm.Current() != State("B") {
		t.Errorf("Expected state B even if handler failed, got %s", sm.Current())
	}
}

func TestStateMachine_StateConsistencyInHandler(t *testing.T) {
	sm := New(State("A"))
	var stateInHandler State
	sm.AddTransition(State("A"), State("B"), Event("go"), func(event Event, args ...interface{}) error {
		stateInHandler = sm.Current()
		return nil
	})

	sm.Fire(Event("go"))
	if stateInHandler != State("B") {
		t.Errorf("Expected handler to see state B, saw %s", stateInHandler)
	}
}

func TestStateMachine_TerminalState(t *testing.T) {
	sm := New(State("waiting"))
	sm.AddTransition(State("waiting"), State("ready"), Event("ready"), nil)
	sm.AddTransition(State("ready"), State("waiting"), Event("reset"), nil)
	sm.SetTerminal(State("ready"))

	if err := sm.Fire(Event("ready")); err != nil {
		t.Fatal(err)
	}
	if !sm.IsTerminal() {
		t.Fatal("Expected ready to be terminal")
	}
	if sm.Can(Event("reset")) {
		t.Error("No event should be allowed from a terminal state")
	}
	if err := sm.Fire(Event("reset")); !errors.Is(err, ErrTerminal) {
		t.Errorf("Expected ErrTerminal, got %v", err)
	}
	if sm.Current() != State("ready") {
		t.Errorf("Terminal state changed to %s", sm.Current())
	}
}

func TestStateMachine_Observer(t *testing.T) {
	sm := New(State("A"))
	sm.AddTransition(State("A"), State("B"), Event("go"), nil)

	var seen []string
	sm.Observe(func(from, to State, event Event) {
		seen = append(seen, fmt.Sprintf("%s->%s:%s", from, to, event))
	})

	sm.Fire(Event("go"))
	sm.Fire(Event("go")) // invalid, not observed

	if len(seen) != 1 || seen[0] != "A->B:go" {
		t.Errorf("Unexpected observations: %v", seen)
	}
}

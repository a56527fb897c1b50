package fsm

import (
	"errors"
	"fmt"
	"sync"
)

type State string
type Event string

// ErrTerminal is returned when an event is fired on a machine that has
// reached a terminal state.
var ErrTerminal = errors.New("fsm: machine is in a terminal state")

// Handler is executed after a transition has been committed.
type Handler func(event Event, args ...interface{}) error

// Observer is notified of every committed transition.
type Observer func(from, to State, event Event)

type StateMachine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]State
	callbacks   map[State]map[Event]Handler
	terminal    map[State]bool
	observers   []Observer
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]map[Event]Handler),
		terminal:    make(map[State]bool),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
		sm.callbacks[from] = make(map[Event]Handler)
	}
	sm.transitions[from][event] = to
	sm.callbacks[from][event] = callback
}

// SetTerminal marks states from which no further transition is accepted.
func (sm *StateMachine) SetTerminal(states ...State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, s := range states {
		sm.terminal[s] = true
	}
}

// IsTerminal reports whether the current state is terminal.
func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.terminal[sm.current]
}

// Observe registers fn to be called after each committed transition.
func (sm *StateMachine) Observe(fn Observer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.observers = append(sm.observers, fn)
}

// Can reports whether event is valid from the current state.
func (sm *StateMachine) Can(event Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.terminal[sm.current] {
		return false
	}
	_, ok := sm.transitions[sm.current][event]
	return ok
}

// Fire triggers a state transition. It is thread-safe. The new state is
// committed before the handler runs, so handlers observe it and may fire
// follow-up events. A handler error is returned but does not roll back.
func (sm *StateMachine) Fire(event Event, args ...interface{}) error {
	sm.mu.Lock()
	from := sm.current
	if sm.terminal[from] {
		sm.mu.Unlock()
		return fmt.Errorf("%w: %s (event %s)", ErrTerminal, from, event)
	}
	next, ok := sm.transitions[from][event]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", from, event)
	}
	handler := sm.callbacks[from][event]
	observers := append([]Observer(nil), sm.observers...)
	sm.current = next
	sm.mu.Unlock()

	for _, fn := range observers {
		fn(from, next, event)
	}
	if handler != nil {
		return handler(event, args...)
	}
	return nil
}

// Personal.AI order the ending

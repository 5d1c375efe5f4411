package pipeline

import "github.com/voxloop/voxloop/core/events"

// Observer receives structured session events for logging, metrics or UI.
// Observers are read-only and must not block; the session never waits on
// them.
type Observer interface {
	OnEvent(event events.Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(events.Event)

func (f ObserverFunc) OnEvent(event events.Event) { f(event) }

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newObserverEmitter(observers []Observer) eventEmitter {
	if len(observers) == 0 {
		return noopEventEmitter
	}

	return func(event events.Event) {
		for _, observer := range observers {
			observer.OnEvent(event)
		}
	}
}

// Package observer implements the ordered registry that broadcasts lifecycle
// events to every registered observer.
package observer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"sweep/pkg/sweeptypes"
)

// Payload carries the event arguments of the lifecycle notifications that
// have any. Only EventReport and EventRunEnd use it.
type Payload struct {
	Report *sweeptypes.Report
	Run    *sweeptypes.Run
}

// Registry holds the registered observers in registration order and
// dispatches lifecycle events to them. Zero registered observers makes every
// broadcast a no-op. An error returned by any observer propagates to the
// caller and aborts the run; there is no partial-failure isolation between
// observers.
//
// The registry is mutated only during setup and module loading; for the
// remainder of a session it is read-only. It is not safe for concurrent
// mutation.
type Registry struct {
	observers []sweeptypes.Observer
	logger    *log.Logger
}

// NewRegistry creates an empty registry logging through the given component
// logger.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends an observer. Dispatch order is registration order, which
// keeps broadcasts deterministic.
func (r *Registry) Register(o sweeptypes.Observer) {
	r.observers = append(r.observers, o)
	r.logger.Debug("Registered observer", "count", len(r.observers))
}

// Unregister removes a previously registered observer. Unknown observers are
// ignored.
func (r *Registry) Unregister(o sweeptypes.Observer) {
	for i, existing := range r.observers {
		if existing == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Count returns the number of registered observers.
func (r *Registry) Count() int {
	return len(r.observers)
}

// Notify broadcasts one lifecycle event to every observer in registration
// order. Observers that do not care about the event run their no-op base
// implementation. The first observer error aborts the broadcast.
func (r *Registry) Notify(event sweeptypes.Event, payload Payload) error {
	r.logger.Debug("Notifying observers", "event", string(event), "observers", len(r.observers))
	for i, o := range r.observers {
		if err := r.dispatch(o, event, payload); err != nil {
			return fmt.Errorf("observer %d failed on %s: %w", i, event, err)
		}
	}
	return nil
}

func (r *Registry) dispatch(o sweeptypes.Observer, event sweeptypes.Event, payload Payload) error {
	switch event {
	case sweeptypes.EventSetup:
		return o.OnSetup()
	case sweeptypes.EventSessionStart:
		return o.OnSessionStart()
	case sweeptypes.EventLeftWindowStart:
		return o.OnLeftWindowStart()
	case sweeptypes.EventLeftWindowEnd:
		return o.OnLeftWindowEnd()
	case sweeptypes.EventTreatmentStart:
		return o.OnTreatmentStart()
	case sweeptypes.EventTreatmentEnd:
		return o.OnTreatmentEnd()
	case sweeptypes.EventRightWindowStart:
		return o.OnRightWindowStart()
	case sweeptypes.EventRightWindowEnd:
		return o.OnRightWindowEnd()
	case sweeptypes.EventReport:
		return o.OnReport(payload.Report)
	case sweeptypes.EventRunEnd:
		return o.OnRunEnd(payload.Run)
	case sweeptypes.EventSessionEnd:
		return o.OnSessionEnd()
	case sweeptypes.EventTeardown:
		return o.OnTeardown()
	default:
		// Best-effort broadcast: an unknown event is logged, never fatal.
		r.logger.Warn("Ignoring unknown lifecycle event", "event", string(event))
		return nil
	}
}

// This file contains the observer capability surface: the lifecycle event
// names, the Observer interface with its no-op base implementation, and the
// trigger capability used by module-driven treatments.
package sweeptypes

// Event names a lifecycle notification dispatched by the observer registry.
type Event string

// Lifecycle events, in the order they fire across a session with one run.
const (
	EventSetup            Event = "onSetup"
	EventSessionStart     Event = "onSessionStart"
	EventLeftWindowStart  Event = "onLeftWindowStart"
	EventLeftWindowEnd    Event = "onLeftWindowEnd"
	EventTreatmentStart   Event = "onTreatmentStart"
	EventTreatmentEnd     Event = "onTreatmentEnd"
	EventRightWindowStart Event = "onRightWindowStart"
	EventRightWindowEnd   Event = "onRightWindowEnd"
	EventReport           Event = "onReport"
	EventRunEnd           Event = "onRunEnd"
	EventSessionEnd       Event = "onSessionEnd"
	EventTeardown         Event = "onTeardown"
)

// Observer receives lifecycle notifications from the run orchestrator.
// Implementations embed BaseObserver and override only the events they care
// about; an error returned from any handler aborts the run.
type Observer interface {
	OnSetup() error
	OnSessionStart() error
	OnLeftWindowStart() error
	OnLeftWindowEnd() error
	OnTreatmentStart() error
	OnTreatmentEnd() error
	OnRightWindowStart() error
	OnRightWindowEnd() error
	OnReport(report *Report) error
	OnRunEnd(run *Run) error
	OnSessionEnd() error
	OnTeardown() error
}

// BaseObserver is a no-op implementation of every lifecycle event. Embedding
// it lets an observer implement only the subset of events it needs.
type BaseObserver struct{}

// OnSetup implements Observer.
func (BaseObserver) OnSetup() error { return nil }

// OnSessionStart implements Observer.
func (BaseObserver) OnSessionStart() error { return nil }

// OnLeftWindowStart implements Observer.
func (BaseObserver) OnLeftWindowStart() error { return nil }

// OnLeftWindowEnd implements Observer.
func (BaseObserver) OnLeftWindowEnd() error { return nil }

// OnTreatmentStart implements Observer.
func (BaseObserver) OnTreatmentStart() error { return nil }

// OnTreatmentEnd implements Observer.
func (BaseObserver) OnTreatmentEnd() error { return nil }

// OnRightWindowStart implements Observer.
func (BaseObserver) OnRightWindowStart() error { return nil }

// OnRightWindowEnd implements Observer.
func (BaseObserver) OnRightWindowEnd() error { return nil }

// OnReport implements Observer.
func (BaseObserver) OnReport(_ *Report) error { return nil }

// OnRunEnd implements Observer.
func (BaseObserver) OnRunEnd(_ *Run) error { return nil }

// OnSessionEnd implements Observer.
func (BaseObserver) OnSessionEnd() error { return nil }

// OnTeardown implements Observer.
func (BaseObserver) OnTeardown() error { return nil }

// Triggerable is the capability of driving a treatment. Modules exposing it
// can be named as the treatment driver in module observation mode. The
// returned map, if any, becomes the run's user data.
type Triggerable interface {
	Trigger(params map[string]any) (map[string]any, error)
}

// TriggerFunc is a caller-supplied treatment driver for trigger observation
// mode. It blocks until the treatment completes.
type TriggerFunc func() (map[string]any, error)

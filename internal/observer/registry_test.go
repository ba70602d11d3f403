package observer

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweep/pkg/sweeptypes"
)

// recordingObserver records which events it saw, in order.
type recordingObserver struct {
	sweeptypes.BaseObserver
	id     string
	events *[]string
}

func (r *recordingObserver) OnTreatmentStart() error {
	*r.events = append(*r.events, r.id+":onTreatmentStart")
	return nil
}

func (r *recordingObserver) OnReport(report *sweeptypes.Report) error {
	*r.events = append(*r.events, r.id+":onReport:"+report.Metadata.Session.Name)
	return nil
}

func (r *recordingObserver) OnRunEnd(run *sweeptypes.Run) error {
	*r.events = append(*r.events, r.id+":onRunEnd:"+run.RunHash)
	return nil
}

type failingObserver struct {
	sweeptypes.BaseObserver
	err error
}

func (f *failingObserver) OnTreatmentStart() error { return f.err }

func newTestRegistry() *Registry {
	return NewRegistry(log.New(io.Discard))
}

func TestRegistry_NotifyZeroObservers(t *testing.T) {
	registry := newTestRegistry()

	err := registry.Notify(sweeptypes.EventTreatmentStart, Payload{})
	assert.NoError(t, err)
}

func TestRegistry_NotifyRegistrationOrder(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	registry.Register(&recordingObserver{id: "a", events: &events})
	registry.Register(&recordingObserver{id: "b", events: &events})

	err := registry.Notify(sweeptypes.EventTreatmentStart, Payload{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:onTreatmentStart", "b:onTreatmentStart"}, events)
}

func TestRegistry_NotifyUnimplementedEventIsNoOp(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	registry.Register(&recordingObserver{id: "a", events: &events})

	// recordingObserver does not override OnSetup; the base no-op runs.
	err := registry.Notify(sweeptypes.EventSetup, Payload{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRegistry_NotifyPayloads(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	registry.Register(&recordingObserver{id: "a", events: &events})

	report := sweeptypes.NewReport(sweeptypes.ReportMetadata{
		Session: sweeptypes.Session{Name: "campaign"},
	})
	require.NoError(t, registry.Notify(sweeptypes.EventReport, Payload{Report: report}))

	run := &sweeptypes.Run{RunHash: "ab12cd34"}
	require.NoError(t, registry.Notify(sweeptypes.EventRunEnd, Payload{Run: run}))

	assert.Equal(t, []string{"a:onReport:campaign", "a:onRunEnd:ab12cd34"}, events)
}

func TestRegistry_NotifyObserverErrorPropagates(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	cause := errors.New("boom")
	registry.Register(&failingObserver{err: cause})
	registry.Register(&recordingObserver{id: "after", events: &events})

	err := registry.Notify(sweeptypes.EventTreatmentStart, Payload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	// No partial-failure isolation: the broadcast stops at the failure.
	assert.Empty(t, events)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	first := &recordingObserver{id: "a", events: &events}
	registry.Register(first)
	registry.Register(&recordingObserver{id: "b", events: &events})
	require.Equal(t, 2, registry.Count())

	registry.Unregister(first)
	assert.Equal(t, 1, registry.Count())

	require.NoError(t, registry.Notify(sweeptypes.EventTreatmentStart, Payload{}))
	assert.Equal(t, []string{"b:onTreatmentStart"}, events)
}

func TestRegistry_UnregisterUnknownIsIgnored(t *testing.T) {
	registry := newTestRegistry()
	registry.Unregister(&recordingObserver{id: "ghost"})
	assert.Equal(t, 0, registry.Count())
}

func TestRegistry_NotifyUnknownEvent(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	registry.Register(&recordingObserver{id: "a", events: &events})

	err := registry.Notify(sweeptypes.Event("onSomethingElse"), Payload{})
	assert.NoError(t, err)
	assert.Empty(t, events)
}

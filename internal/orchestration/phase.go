// Package orchestration implements the run orchestrator: the phase state
// machine that sequences setup, windowing, treatment, and teardown while
// notifying observers, and that hands every completed run to the report
// store.
package orchestration

import "fmt"

// Phase is one state of the orchestrator lifecycle.
type Phase int

// Lifecycle phases. Setup and SessionClosed are entered exactly once per
// session; the LeftWindow/Treatment/RightWindow sub-sequence repeats once
// per run.
const (
	PhaseIdle Phase = iota
	PhaseSetup
	PhaseSessionActive
	PhaseLeftWindow
	PhaseTreatment
	PhaseRightWindow
	PhaseObserved
	PhaseSessionClosed
)

var phaseNames = map[Phase]string{
	PhaseIdle:          "Idle",
	PhaseSetup:         "Setup",
	PhaseSessionActive: "SessionActive",
	PhaseLeftWindow:    "LeftWindow",
	PhaseTreatment:     "Treatment",
	PhaseRightWindow:   "RightWindow",
	PhaseObserved:      "Observed",
	PhaseSessionClosed: "SessionClosed",
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// phaseTransitions is the closed transition relation of the lifecycle.
var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseSetup},
	PhaseSetup:         {PhaseSessionActive},
	PhaseSessionActive: {PhaseLeftWindow, PhaseTreatment, PhaseSessionClosed},
	PhaseLeftWindow:    {PhaseTreatment},
	PhaseTreatment:     {PhaseRightWindow, PhaseObserved},
	PhaseRightWindow:   {PhaseObserved},
	PhaseObserved:      {PhaseSessionActive},
	PhaseSessionClosed: {},
}

// canTransition reports whether the lifecycle permits moving between two
// phases.
func canTransition(from, to Phase) bool {
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

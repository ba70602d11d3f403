package orchestration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"sweep/internal/config"
	"sweep/internal/modules"
	"sweep/internal/observer"
	"sweep/internal/report"
	"sweep/pkg/sweeptypes"
)

// Sentinel errors of the orchestrator.
var (
	// ErrNoActiveSession marks a run invoked before StartSession.
	ErrNoActiveSession = errors.New("no active session")
	// ErrNotImplemented marks lifecycle surfaces that are deliberately
	// unimplemented in the core, rather than silently succeeding.
	ErrNotImplemented = errors.New("not implemented")
)

// treatmentColumn labels rows inside the treatment interval of every
// observation table.
const (
	treatmentColumn = "treatment"
	treatmentLabel  = "Treatment"
)

// Orchestrator owns the observer registry and the live run record during a
// run. Execution is single-threaded and cooperative: windows are blocking
// sleeps, treatment drivers are invoked synchronously, and no two Run calls
// on the same instance may execute concurrently. Callers serialize runs
// themselves; the orchestrator does not defend against concurrent
// invocation.
type Orchestrator struct {
	cfg       *config.Config
	observers *observer.Registry
	loaded    *modules.Loaded
	store     *report.Store
	logger    *log.Logger

	sources  map[string]sweeptypes.MeasurementSource
	services map[string]sweeptypes.ServiceClient

	phase   Phase
	session sweeptypes.Session

	// Injection points for tests. Defaults are time.Sleep and time.Now.
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates an orchestrator for the given campaign: it populates the
// observer registry by loading every configured module from the global
// module registry and wires the report store. Module resolution failures are
// fatal here, at load time.
func New(cfg *config.Config, logger *log.Logger) (*Orchestrator, error) {
	observers := observer.NewRegistry(logger)
	loaded, err := modules.Load(cfg.Modules, modules.GlobalRegistry, observers, logger)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:       cfg,
		observers: observers,
		loaded:    loaded,
		store:     report.NewStore(cfg, logger),
		logger:    logger,
		sources:   make(map[string]sweeptypes.MeasurementSource),
		services:  make(map[string]sweeptypes.ServiceClient),
		phase:     PhaseIdle,
		sleep:     time.Sleep,
		now:       time.Now,
	}, nil
}

// SetSources installs the measurement sources queried after each run.
func (o *Orchestrator) SetSources(sources map[string]sweeptypes.MeasurementSource) {
	o.sources = sources
}

// SetServices installs the service clients checked by Connect.
func (o *Orchestrator) SetServices(services map[string]sweeptypes.ServiceClient) {
	o.services = services
}

// RegisterObserver adds an observer beyond the configured modules.
func (o *Orchestrator) RegisterObserver(obs sweeptypes.Observer) {
	o.observers.Register(obs)
}

// UnregisterObserver removes a previously registered observer.
func (o *Orchestrator) UnregisterObserver(obs sweeptypes.Observer) {
	o.observers.Unregister(obs)
}

// Modules returns the loaded modules of this campaign.
func (o *Orchestrator) Modules() *modules.Loaded {
	return o.loaded
}

// Store returns the report store of this campaign.
func (o *Orchestrator) Store() *report.Store {
	return o.store
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	return o.phase
}

// Session returns the active session record.
func (o *Orchestrator) Session() sweeptypes.Session {
	return o.session
}

func (o *Orchestrator) advance(to Phase) error {
	if !canTransition(o.phase, to) {
		return fmt.Errorf("invalid phase transition %s -> %s", o.phase, to)
	}
	o.logger.Debug("Phase transition", "phase", to.String(), "from", o.phase.String())
	o.phase = to
	return nil
}

// Connect pings every configured service client. Any unreachable service is
// fatal.
func (o *Orchestrator) Connect(ctx context.Context) error {
	names := sortedKeys(o.services)
	for _, name := range names {
		if err := o.services[name].Ping(ctx); err != nil {
			o.logger.Error("Service is not reachable", "module", name, "error", err)
			return fmt.Errorf("service %q is not reachable: %w", name, err)
		}
		o.logger.Info("Service is reachable", "module", name)
	}
	return nil
}

// Probe checks every configured measurement for availability. A probe
// failure counts as unavailable; deciding whether that aborts the campaign
// is the caller's policy.
func (o *Orchestrator) Probe(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(o.sources))
	for _, name := range sortedKeys(o.sources) {
		available, err := o.sources[name].Probe(ctx)
		if err != nil {
			o.logger.Warn("Probe failed", "measurement", name, "error", err)
			available = false
		}
		results[name] = available
	}
	return results
}

// StartSession opens the session: Setup is entered exactly once, observers
// get onSetup and onSessionStart, and runs become possible.
func (o *Orchestrator) StartSession(session sweeptypes.Session) error {
	if err := o.advance(PhaseSetup); err != nil {
		return err
	}
	o.session = session
	if err := o.observers.Notify(sweeptypes.EventSetup, observer.Payload{}); err != nil {
		return err
	}
	if err := o.advance(PhaseSessionActive); err != nil {
		return err
	}
	if err := o.observers.Notify(sweeptypes.EventSessionStart, observer.Payload{}); err != nil {
		return err
	}
	o.logger.Info("Session started", "session", session.Name)
	return nil
}

// EndSession closes the session: observers get onSessionEnd and onTeardown,
// and the orchestrator reaches SessionClosed.
func (o *Orchestrator) EndSession() error {
	if o.phase != PhaseSessionActive {
		return fmt.Errorf("%w: cannot end session in phase %s", ErrNoActiveSession, o.phase)
	}
	if err := o.observers.Notify(sweeptypes.EventSessionEnd, observer.Payload{}); err != nil {
		return err
	}
	if err := o.observers.Notify(sweeptypes.EventTeardown, observer.Payload{}); err != nil {
		return err
	}
	if err := o.advance(PhaseSessionClosed); err != nil {
		return err
	}
	o.logger.Info("Session closed", "session", o.session.Name)
	return nil
}

// Deploy is a defined lifecycle point for auxiliary infrastructure that the
// core deliberately does not implement.
func (o *Orchestrator) Deploy(context.Context) error {
	return fmt.Errorf("%w: deployment of auxiliary infrastructure", ErrNotImplemented)
}

// Undeploy is the counterpart of Deploy and equally unimplemented.
func (o *Orchestrator) Undeploy(context.Context) error {
	return fmt.Errorf("%w: undeployment of auxiliary infrastructure", ErrNotImplemented)
}

// Run executes one phase sequence: optional left window, treatment driven by
// the configured observation mode, optional right window, measurement fetch,
// persistence, and the onRunEnd notification. The trigger argument is
// consulted only in trigger mode. Run blocks for the whole sequence.
func (o *Orchestrator) Run(ctx context.Context, trigger sweeptypes.TriggerFunc) (*sweeptypes.Run, error) {
	if o.phase != PhaseSessionActive {
		return nil, fmt.Errorf("%w: call StartSession before Run (phase %s)", ErrNoActiveSession, o.phase)
	}

	mode := o.cfg.Observation.Mode
	window := o.cfg.Observation.Window

	// Mode preconditions fail before any window sleep.
	var moduleTrigger sweeptypes.Triggerable
	switch mode {
	case config.ModeTimer:
		if window == nil {
			return nil, fmt.Errorf("observation window must be configured for %s mode", config.ModeTimer)
		}
	case config.ModeTrigger:
		if trigger == nil {
			return nil, fmt.Errorf("trigger function must be provided for %s mode", config.ModeTrigger)
		}
	case config.ModeModule:
		var err error
		moduleTrigger, err = o.loaded.Trigger(o.cfg.Observation.ModuleTrigger)
		if err != nil {
			return nil, err
		}
	case config.ModeContinuous:
		return nil, fmt.Errorf("%w: continuous observation mode", ErrNotImplemented)
	default:
		return nil, fmt.Errorf("unknown observation mode %q", mode)
	}

	startTime := o.now()
	runHash := makeRunHash(startTime)
	o.logger.Info("Run started", "runHash", runHash, "mode", mode)

	if window != nil {
		if err := o.advance(PhaseLeftWindow); err != nil {
			return nil, err
		}
		if err := o.observers.Notify(sweeptypes.EventLeftWindowStart, observer.Payload{}); err != nil {
			return nil, err
		}
		o.sleep(window.Left.Duration)
		if err := o.observers.Notify(sweeptypes.EventLeftWindowEnd, observer.Payload{}); err != nil {
			return nil, err
		}
	}

	if err := o.advance(PhaseTreatment); err != nil {
		return nil, err
	}
	if err := o.observers.Notify(sweeptypes.EventTreatmentStart, observer.Payload{}); err != nil {
		return nil, err
	}
	treatmentStart := o.now()

	var userData map[string]any
	var driverErr error
	switch mode {
	case config.ModeTimer:
		o.sleep(window.Duration.Duration)
	case config.ModeTrigger:
		userData, driverErr = trigger()
	case config.ModeModule:
		userData, driverErr = moduleTrigger.Trigger(map[string]any{})
	}
	if driverErr != nil {
		// Interrupted or failed treatment is a non-recoverable termination;
		// no partial run data is retained.
		return nil, fmt.Errorf("treatment driver failed: %w", driverErr)
	}

	treatmentEnd := o.now()
	o.logger.Info("Treatment finished", "duration", treatmentEnd.Sub(treatmentStart))
	if err := o.observers.Notify(sweeptypes.EventTreatmentEnd, observer.Payload{}); err != nil {
		return nil, err
	}

	if window != nil {
		if err := o.advance(PhaseRightWindow); err != nil {
			return nil, err
		}
		if err := o.observers.Notify(sweeptypes.EventRightWindowStart, observer.Payload{}); err != nil {
			return nil, err
		}
		o.sleep(window.Right.Duration)
		if err := o.observers.Notify(sweeptypes.EventRightWindowEnd, observer.Payload{}); err != nil {
			return nil, err
		}
	}

	endTime := o.now()
	run := sweeptypes.Run{
		StartTime:      startTime,
		EndTime:        endTime,
		TreatmentStart: treatmentStart,
		TreatmentEnd:   treatmentEnd,
		RunHash:        runHash,
		UserData:       userData,
	}
	o.logger.Info("Run finished", "runHash", runHash, "duration", run.Duration())

	if err := o.advance(PhaseObserved); err != nil {
		return nil, err
	}
	if _, err := o.observeOnce(ctx, run); err != nil {
		return nil, err
	}
	if err := o.observers.Notify(sweeptypes.EventRunEnd, observer.Payload{Run: &run}); err != nil {
		return nil, err
	}
	if err := o.advance(PhaseSessionActive); err != nil {
		return nil, err
	}
	return &run, nil
}

// observeOnce fetches every configured measurement over the run interval,
// labels the treatment rows, persists the resulting report, and notifies
// onReport exactly once with the persisted report. A service failure on one
// measurement is logged and skipped; it never aborts the remaining
// measurements or the run.
func (o *Orchestrator) observeOnce(ctx context.Context, run sweeptypes.Run) (*sweeptypes.Report, error) {
	rep := sweeptypes.NewReport(sweeptypes.ReportMetadata{Session: o.session, Run: run})

	for _, name := range sortedKeys(o.sources) {
		o.logger.Info("Observing measurement", "measurement", name)
		table, err := o.sources[name].Observe(ctx, run.StartTime, run.EndTime)
		if err != nil {
			var serviceErr *sweeptypes.ServiceError
			if errors.As(err, &serviceErr) {
				o.logger.Error("Failed to observe measurement", "measurement", name, "error", err)
				continue
			}
			return nil, fmt.Errorf("measurement %q: %w", name, err)
		}
		table.Label(run.TreatmentStart, run.TreatmentEnd, treatmentColumn, treatmentLabel)
		rep.SetTable(name, table)
	}

	if _, err := o.store.Persist(rep); err != nil {
		return nil, err
	}
	if err := o.observers.Notify(sweeptypes.EventReport, observer.Payload{Report: rep}); err != nil {
		return nil, err
	}
	return rep, nil
}

// makeRunHash derives the short run identifier from the start time and a
// random salt. It only needs to be unique enough for directory naming.
func makeRunHash(startTime time.Time) string {
	input := fmt.Sprintf("%s_%s", startTime.Format(time.RFC3339Nano), uuid.NewString())
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:8]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

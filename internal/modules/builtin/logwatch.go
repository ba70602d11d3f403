package builtin

import (
	"github.com/charmbracelet/log"

	"sweep/internal/modules"
	"sweep/pkg/sweeptypes"
)

// LogwatchModule logs every lifecycle event. It is useful as a minimal
// module in example campaigns and when tracing a phase sequence.
type LogwatchModule struct {
	logger *log.Logger
}

// NewLogwatchModule constructs a logwatch module. It takes no configuration.
func NewLogwatchModule(_ map[string]any, logger *log.Logger) (sweeptypes.Observer, error) {
	return &LogwatchModule{logger: logger}, nil
}

// OnSetup implements sweeptypes.Observer.
func (m *LogwatchModule) OnSetup() error {
	m.logger.Info("Setup started")
	return nil
}

// OnSessionStart implements sweeptypes.Observer.
func (m *LogwatchModule) OnSessionStart() error {
	m.logger.Info("Session started")
	return nil
}

// OnLeftWindowStart implements sweeptypes.Observer.
func (m *LogwatchModule) OnLeftWindowStart() error {
	m.logger.Info("Left window started")
	return nil
}

// OnLeftWindowEnd implements sweeptypes.Observer.
func (m *LogwatchModule) OnLeftWindowEnd() error {
	m.logger.Info("Left window ended")
	return nil
}

// OnTreatmentStart implements sweeptypes.Observer.
func (m *LogwatchModule) OnTreatmentStart() error {
	m.logger.Info("Treatment started")
	return nil
}

// OnTreatmentEnd implements sweeptypes.Observer.
func (m *LogwatchModule) OnTreatmentEnd() error {
	m.logger.Info("Treatment ended")
	return nil
}

// OnRightWindowStart implements sweeptypes.Observer.
func (m *LogwatchModule) OnRightWindowStart() error {
	m.logger.Info("Right window started")
	return nil
}

// OnRightWindowEnd implements sweeptypes.Observer.
func (m *LogwatchModule) OnRightWindowEnd() error {
	m.logger.Info("Right window ended")
	return nil
}

// OnReport implements sweeptypes.Observer.
func (m *LogwatchModule) OnReport(report *sweeptypes.Report) error {
	m.logger.Info("Report persisted", "location", report.Location, "measurements", len(report.Measurements()))
	return nil
}

// OnRunEnd implements sweeptypes.Observer.
func (m *LogwatchModule) OnRunEnd(run *sweeptypes.Run) error {
	m.logger.Info("Run completed", "runHash", run.RunHash, "duration", run.Duration())
	return nil
}

// OnSessionEnd implements sweeptypes.Observer.
func (m *LogwatchModule) OnSessionEnd() error {
	m.logger.Info("Session ended")
	return nil
}

// OnTeardown implements sweeptypes.Observer.
func (m *LogwatchModule) OnTeardown() error {
	m.logger.Info("Teardown completed")
	return nil
}

func init() {
	if err := modules.GlobalRegistry.Register("logwatch", NewLogwatchModule); err != nil {
		panic(err)
	}
}

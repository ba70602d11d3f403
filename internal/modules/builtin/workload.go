package builtin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"sweep/internal/modules"
	"sweep/pkg/sweeptypes"
)

// WorkloadModule drives the treatment through a remote load generator with a
// small HTTP control API: start a test run, poll its status until it leaves
// the "running" state, and after the report is persisted download the
// generator's artifact archive next to the measurement data.
type WorkloadModule struct {
	sweeptypes.BaseObserver

	baseURL      string
	startPath    string
	statusPath   string
	artifactPath string
	artifactFile string
	pollInterval time.Duration
	client       *http.Client
	logger       *log.Logger
}

// NewWorkloadModule constructs a workload module.
//
// Config keys: "url" (required, base URL of the generator's control API),
// "startPath" (default "/start"), "statusPath" (default "/status"),
// "artifactPath" (optional; artifact download is skipped when unset),
// "artifactFile" (default "workload.zip"), "pollInterval" (default "1s"),
// "timeout" (per-request, default "30s").
func NewWorkloadModule(cfg map[string]any, logger *log.Logger) (sweeptypes.Observer, error) {
	baseURL, err := requiredString(cfg, "url")
	if err != nil {
		return nil, err
	}
	startPath, err := optionalString(cfg, "startPath", "/start")
	if err != nil {
		return nil, err
	}
	statusPath, err := optionalString(cfg, "statusPath", "/status")
	if err != nil {
		return nil, err
	}
	artifactPath, err := optionalString(cfg, "artifactPath", "")
	if err != nil {
		return nil, err
	}
	artifactFile, err := optionalString(cfg, "artifactFile", "workload.zip")
	if err != nil {
		return nil, err
	}
	pollInterval, err := optionalDuration(cfg, "pollInterval", time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := optionalDuration(cfg, "timeout", 30*time.Second)
	if err != nil {
		return nil, err
	}
	return &WorkloadModule{
		baseURL:      strings.TrimRight(baseURL, "/"),
		startPath:    startPath,
		statusPath:   statusPath,
		artifactPath: artifactPath,
		artifactFile: artifactFile,
		pollInterval: pollInterval,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}, nil
}

// Trigger implements sweeptypes.Triggerable. It starts the remote test run
// and blocks, polling the status endpoint, until the run leaves the
// "running" state. The final status document becomes the run's user data.
func (m *WorkloadModule) Trigger(params map[string]any) (map[string]any, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode start parameters: %w", err)
	}
	resp, err := m.client.Post(m.baseURL+m.startPath, "application/json", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to start workload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workload start returned status %d", resp.StatusCode)
	}
	m.logger.Info("Workload started", "url", m.baseURL)

	for {
		status, err := m.fetchStatus()
		if err != nil {
			return nil, err
		}
		state, _ := status["status"].(string)
		m.logger.Debug("Workload status", "status", state)
		if state != "running" {
			m.logger.Info("Workload finished", "status", state)
			return status, nil
		}
		time.Sleep(m.pollInterval)
	}
}

func (m *WorkloadModule) fetchStatus() (map[string]any, error) {
	resp, err := m.client.Get(m.baseURL + m.statusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to poll workload status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workload status returned status %d", resp.StatusCode)
	}
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode workload status: %w", err)
	}
	return status, nil
}

// OnReport implements sweeptypes.Observer. It downloads the generator's
// artifact archive into the persisted report location.
func (m *WorkloadModule) OnReport(report *sweeptypes.Report) error {
	if m.artifactPath == "" || report.Location == "" {
		return nil
	}
	target := filepath.Join(report.Location, m.artifactFile)
	m.logger.Info("Downloading workload artifact", "location", target)

	resp, err := m.client.Get(m.baseURL + m.artifactPath)
	if err != nil {
		return fmt.Errorf("failed to download workload artifact: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("workload artifact returned status %d", resp.StatusCode)
	}

	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer func() { _ = file.Close() }()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to write artifact file: %w", err)
	}
	return nil
}

func init() {
	if err := modules.GlobalRegistry.Register("workload", NewWorkloadModule); err != nil {
		panic(err)
	}
}

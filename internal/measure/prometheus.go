// Package measure provides the concrete measurement sources queried after a
// run. The only backend shipped is Prometheus; the orchestrator sees it
// through the opaque MeasurementSource and ServiceClient capabilities.
package measure

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"sweep/internal/config"
	"sweep/pkg/sweeptypes"
)

// PrometheusClient wraps one Prometheus endpoint and implements the
// ServiceClient reachability check.
type PrometheusClient struct {
	name string
	api  promv1.API
}

// NewPrometheusClient creates a client for the given service configuration.
func NewPrometheusClient(name string, cfg config.ServiceConfig) (*PrometheusClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("service %q: url must be set", name)
	}
	client, err := api.NewClient(api.Config{Address: cfg.URL})
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", name, err)
	}
	return &PrometheusClient{name: name, api: promv1.NewAPI(client)}, nil
}

// Ping implements sweeptypes.ServiceClient with a trivial instant query.
func (c *PrometheusClient) Ping(ctx context.Context) error {
	if _, _, err := c.api.Query(ctx, "vector(1)", time.Now()); err != nil {
		return &sweeptypes.ServiceError{Service: c.name, Err: err}
	}
	return nil
}

// PrometheusSource is one configured measurement: a range query against a
// Prometheus endpoint, evaluated at a fixed step.
type PrometheusSource struct {
	name   string
	client *PrometheusClient
	query  string
	step   time.Duration
	logger *log.Logger
}

// NewPrometheusSource creates a measurement source on an existing client.
func NewPrometheusSource(name string, client *PrometheusClient, cfg config.MeasurementConfig, logger *log.Logger) *PrometheusSource {
	return &PrometheusSource{
		name:   name,
		client: client,
		query:  cfg.Query,
		step:   cfg.Step.Duration,
		logger: logger,
	}
}

// Observe implements sweeptypes.MeasurementSource. The returned table has
// one column per series; rows are aligned on the union of sample timestamps.
func (s *PrometheusSource) Observe(ctx context.Context, start, end time.Time) (*sweeptypes.Table, error) {
	value, warnings, err := s.client.api.QueryRange(ctx, s.query, promv1.Range{
		Start: start,
		End:   end,
		Step:  s.step,
	})
	if err != nil {
		return nil, &sweeptypes.ServiceError{Service: s.client.name, Err: err}
	}
	for _, warning := range warnings {
		s.logger.Warn("Query warning", "measurement", s.name, "warning", warning)
	}
	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, &sweeptypes.ServiceError{
			Service: s.client.name,
			Err:     fmt.Errorf("unexpected result type %s for range query", value.Type()),
		}
	}
	return matrixToTable(matrix)
}

// Probe implements sweeptypes.MeasurementSource: the measurement is
// available when an instant evaluation of its query yields any series.
func (s *PrometheusSource) Probe(ctx context.Context) (bool, error) {
	value, _, err := s.client.api.Query(ctx, s.query, time.Now())
	if err != nil {
		return false, &sweeptypes.ServiceError{Service: s.client.name, Err: err}
	}
	vector, ok := value.(model.Vector)
	if !ok {
		return false, nil
	}
	return len(vector) > 0, nil
}

// matrixToTable pivots a Prometheus matrix into a wide table: one column per
// series, one row per sample timestamp. Missing samples leave empty cells.
func matrixToTable(matrix model.Matrix) (*sweeptypes.Table, error) {
	columns := make([]string, 0, len(matrix))
	bySeries := make([]map[time.Time]string, 0, len(matrix))
	timestamps := make(map[time.Time]bool)

	for _, series := range matrix {
		name := series.Metric.String()
		if len(series.Metric) == 0 {
			name = "value"
		}
		columns = append(columns, name)
		samples := make(map[time.Time]string, len(series.Values))
		for _, sample := range series.Values {
			ts := sample.Timestamp.Time()
			samples[ts] = strconv.FormatFloat(float64(sample.Value), 'f', -1, 64)
			timestamps[ts] = true
		}
		bySeries = append(bySeries, samples)
	}

	ordered := make([]time.Time, 0, len(timestamps))
	for ts := range timestamps {
		ordered = append(ordered, ts)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	table := sweeptypes.NewTable(columns...)
	for _, ts := range ordered {
		cells := make([]string, len(columns))
		for i, samples := range bySeries {
			cells[i] = samples[ts]
		}
		if err := table.AddRow(ts, cells...); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// FromConfig builds one client per configured service and one source per
// configured measurement. Construction failures are fatal, matching the
// configuration error contract.
func FromConfig(cfg *config.Config, logger *log.Logger) (map[string]sweeptypes.MeasurementSource, map[string]sweeptypes.ServiceClient, error) {
	clients := make(map[string]*PrometheusClient, len(cfg.Services))
	services := make(map[string]sweeptypes.ServiceClient, len(cfg.Services))
	for name, serviceCfg := range cfg.Services {
		client, err := NewPrometheusClient(name, serviceCfg)
		if err != nil {
			return nil, nil, err
		}
		clients[name] = client
		services[name] = client
	}

	sources := make(map[string]sweeptypes.MeasurementSource, len(cfg.Measurements))
	for name, measurementCfg := range cfg.Measurements {
		client, ok := clients[measurementCfg.Service]
		if !ok {
			return nil, nil, fmt.Errorf("measurement %q references unknown service %q", name, measurementCfg.Service)
		}
		sources[name] = NewPrometheusSource(name, client, measurementCfg, logger)
	}
	return sources, services, nil
}

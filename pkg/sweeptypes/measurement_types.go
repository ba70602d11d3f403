// This file contains the external collaborator capabilities: measurement
// sources queried after a run and service clients checked during connect.
package sweeptypes

import (
	"context"
	"fmt"
	"time"
)

// MeasurementSource queries one measurement from a metrics backend. How the
// query is built is the source's concern; the orchestrator only supplies the
// observation interval.
type MeasurementSource interface {
	// Observe fetches the measurement over [start, end].
	Observe(ctx context.Context, start, end time.Time) (*Table, error)
	// Probe reports whether the measurement currently yields any data.
	Probe(ctx context.Context) (bool, error)
}

// ServiceClient is the reachability surface of a configured backend service.
type ServiceClient interface {
	// Ping returns a non-nil error when the service is not reachable.
	Ping(ctx context.Context) error
}

// ServiceError wraps a failure of a measurement source or service client.
// The orchestrator recovers from it per measurement: the failed measurement
// is logged and left out of the report, the run continues.
type ServiceError struct {
	Service string
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %v", e.Service, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

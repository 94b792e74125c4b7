// Package core defines the connector contracts for the Optiply target.
package core

import (
	"context"

	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/models"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Outcome classifies how a single record was handled. Every record yields
// exactly one outcome; per-record failures never abort the run.
type Outcome int

const (
	// OutcomeSuccess means the record was written to the remote API
	OutcomeSuccess Outcome = iota
	// OutcomeSkipped means the record failed validation and no HTTP call was made
	OutcomeSkipped
	// OutcomeNotFound means the remote API returned 404; treated as a no-op
	OutcomeNotFound
	// OutcomeFailed means the remote API rejected the record or retries were exhausted
	OutcomeFailed
)

// String returns the label used in logs and metrics
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the per-record processing result returned by a sink.
type Result struct {
	Outcome Outcome
	// Reason carries the skip reason or failure detail, empty on success
	Reason string
	// Err is set for failed outcomes; fatal errors (auth, unknown stream)
	// additionally satisfy errors.IsFatal
	Err error
}

// RecordContext carries optional per-record hints from the surrounding
// pipeline: a pre-computed HTTP method and the in-flight record used for
// PATCH URL construction. Either may be empty.
type RecordContext struct {
	HTTPMethod string
	Record     *models.Record
}

// RecordSink processes records one at a time for a single logical stream.
type RecordSink interface {
	// Stream returns the logical stream name this sink serves
	Stream() string
	// Process handles one record to completion and reports its outcome.
	// Only authentication and configuration errors abort the run.
	Process(ctx context.Context, record *models.Record, recordCtx *RecordContext) Result
}

// RecordStream represents a stream of records delivered serially
type RecordStream struct {
	Records <-chan *models.Record
	Errors  <-chan error
}

// Destination is the interface destination connectors implement.
type Destination interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Write(ctx context.Context, stream *RecordStream) error
	Close(ctx context.Context) error

	// SinkFor resolves the record sink for a logical stream name.
	// Unknown stream names are configuration errors and abort the run.
	SinkFor(streamName string) (RecordSink, error)

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Connector is the base interface for all connectors
type Connector interface {
	Name() string
	Type() ConnectorType
	Version() string

	Initialize(ctx context.Context, config *config.BaseConfig) error
	Close(ctx context.Context) error

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

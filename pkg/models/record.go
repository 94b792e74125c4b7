// Package models provides the record types flowing through the Optiply target.
// Records arrive one at a time from the upstream extraction pipeline and are
// read-only to the connector core; the pool exists so the serial hot path does
// not allocate a fresh map per record.
package models

import (
	"sync"
	"time"
)

// RecordMetadata carries source and timing information for a record.
// All fields are optional.
type RecordMetadata struct {
	// Source identifies the origin system or connector
	Source string `json:"source,omitempty"`
	// Stream is the logical stream name the record belongs to
	// (Products, Suppliers, BuyOrders, ...)
	Stream string `json:"stream,omitempty"`
	// Timestamp when the record was captured
	Timestamp time.Time `json:"timestamp"`
	// Custom metadata fields for extensibility
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unit of work delivered to a sink. Data maps input field names
// to loosely-typed values (string, number, bool, ISO-8601 timestamp, or a
// JSON-encoded array for embedded line items).
type Record struct {
	// ID is a unique identifier for the record, when the source provides one
	ID string `json:"id"`
	// Data contains the actual record payload
	Data map[string]interface{} `json:"data"`
	// Metadata contains source and timing information
	Metadata RecordMetadata `json:"metadata"`
}

var recordPool = sync.Pool{
	New: func() interface{} {
		return &Record{
			Data: make(map[string]interface{}, 16),
		}
	},
}

// NewRecord retrieves a Record from the pool with a fresh timestamp.
// Records must be returned with Release when done.
func NewRecord(stream string) *Record {
	r := recordPool.Get().(*Record)
	r.Metadata.Stream = stream
	r.Metadata.Timestamp = time.Now()
	return r
}

// Release clears the record and returns it to the pool.
func (r *Record) Release() {
	if r == nil {
		return
	}
	r.ID = ""
	for k := range r.Data {
		delete(r.Data, k)
	}
	r.Metadata = RecordMetadata{}
	recordPool.Put(r)
}

// SetData sets a data field on the record.
func (r *Record) SetData(key string, value interface{}) {
	r.Data[key] = value
}

// Has reports whether the named field is present and non-nil.
func (r *Record) Has(key string) bool {
	v, ok := r.Data[key]
	return ok && v != nil
}

// Package connector provides the framework for the Optiply destination
// connector: the contracts a destination implements, the shared retry and
// error handling building blocks, and the registry that wires it all up.
//
// # Architecture Overview
//
// The connector package is organized into sub-packages:
//
//   - core: Defines the fundamental interfaces (Destination, RecordSink)
//     and the per-record Result/Outcome types. A destination resolves one
//     sink per logical stream and processes records serially through it.
//
//   - base: Provides the shared retry policy (exponential backoff with
//     jitter, applied only to transient failures) and the error handler
//     that decides whether an error fails one record or aborts the run.
//
//   - destinations: Contains the destination implementations. The optiply
//     destination pushes typed business records to the Optiply JSON:API
//     service, one request per record.
//
//   - registry: Implements a factory pattern for destination discovery and
//     instantiation. Destinations self-register during initialization.
//
// # Usage
//
// Destinations are created through the registry:
//
//	cfg := config.NewBaseConfig("optiply", "destination")
//	cfg.Security.Credentials["username"] = "..."
//	dest, err := registry.CreateDestination("optiply", cfg)
//
// After Initialize, records flow through Write or through per-stream sinks
// obtained from SinkFor. Per-record failures are reported in the record's
// Result; only authentication and configuration errors abort a run.
package connector

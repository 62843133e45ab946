// Package engine analyzes dermatology images across three execution
// surfaces, adapting to whatever the device can offer at the moment.
//
// Every analysis starts with a probe of the current conditions (battery,
// thermal pressure, connectivity, model readiness). A pure selector turns
// that snapshot into an ordered provider chain, the orchestrator walks the
// chain with per-provider deadlines and a low-confidence second-opinion
// pass, and a validator annotates the final result without ever rejecting
// it. The chain always ends on an offline heuristic, so a result comes back
// even on a cold, disconnected device.
//
// The execution surfaces:
//
//   - local: the on-device model, reached through a runner subprocess over
//     a unix socket, gated on the model lifecycle manager
//   - cloud: the hosted analysis service, JSON over HTTPS
//   - offline_heuristic: a deterministic image-statistics fallback with a
//     hard confidence ceiling
//
// Batches run through a bounded worker pool that preserves request order
// and isolates failures per item. Longitudinal comparisons pair two image
// sets index by index under a single shared device snapshot. Finished
// analyses and provider outcomes are journaled to SQLite, which feeds both
// the history validator and a decay-weighted routing bias. Engine events
// can be published to an MQTT broker.
package engine

// Package event defines the canonical event envelope and event-type registry used by
// the governance write path.
//
// Events are immutable facts emitted by accepted decisions. The registry
// enforces actor metadata, entity addressing and payload validity before the
// journal assigns sequence and integrity fields. External indexers consume the
// same envelopes to build read models; the core never reads them back except
// during replay.
package event

// Package command defines the canonical command envelope and contract used across
// the governance write path.
//
// Commands express business intent from the service facade and tooling. The
// registry normalizes actor identity and payloads and records which
// capability, if any, a command type requires, so deciders only ever see
// validated input with resolved grants attached.
package command

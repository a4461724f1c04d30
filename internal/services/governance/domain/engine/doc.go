// Package engine executes governance commands one at a time: it validates
// the envelope, resolves capabilities, asks the domain decider for a
// decision, appends the resulting events to the journal and only then
// applies them to the in-memory aggregate.
//
// Queries read the aggregate under a shared lock and never observe a
// half-applied command.
package engine

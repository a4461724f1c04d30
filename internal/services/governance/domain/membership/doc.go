// Package membership owns organization members, their tiers and status
// machine, the delegation graph and the voting power derived from them.
//
// Per-organization aggregates (member counts and total effective power) are
// updated inside the same mutation as the member they summarize.
package membership

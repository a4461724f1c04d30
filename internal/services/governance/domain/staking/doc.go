// Package staking owns token custody for the governance core: liquid wallets,
// purpose-scoped stake positions, pending withdrawals, the reward pool, the
// protocol treasury pool and per-organization treasuries.
//
// Every token movement is expressed as an event folded into State, so the sum
// of wallets, positions, pending withdrawals, pools and treasuries only changes
// through explicit credits.
package staking

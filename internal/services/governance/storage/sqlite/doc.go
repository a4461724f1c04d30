// Package sqlite stores the governance event journal in SQLite.
//
// The journal is the only durable state: the aggregate is rebuilt from it on
// startup. Appends run in a single transaction so a batch is either fully
// stored with contiguous seqs or not stored at all.
package sqlite

// Package integrity signs and verifies the chain hashes of the governance
// event journal. Keys are derived per organization scope with HKDF so a
// leaked organization key cannot forge another organization's history.
package integrity

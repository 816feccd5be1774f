// Package license implements the offline tamper-resistant license core for
// BillCLI: trial lifecycle, device-bound activation, and integrity checking,
// all without network access.
//
// # Architecture Overview
//
//   - Manager: validation engine, state machine, and cached results
//   - StorageManager: three redundant locations with majority-vote consensus
//   - Signed payload model: device-key MACs over a canonical serialization
//   - Health: storage and cache diagnostics
//
// # Validation Flow
//
// A full validation reads all three storage locations, selects the majority
// record, verifies its signature against the freshly computed device
// identity, runs package/version/clock consistency checks, repairs any
// disagreeing location, and derives the license status. Results are cached;
// frequent permission checks go through the cache.
//
// # Threat Model
//
// The embedded secret ships inside the binary and is extractable by a
// determined attacker. The design deters casual tampering and detects the
// common manipulation patterns: clock rollback (clock plausibility checks),
// data copied between devices (live-identity signature binding plus
// fingerprint comparison, answered with a trial reset), and storage editing
// (signature verification plus three-way consensus with self-repair).
//
// # Fail-Open Invariant
//
// Before the first validation completes, permission checks return true. The
// license layer must never block the user's access to their own data because
// of an internal fault; this is a product decision, documented here rather
// than left as an implicit fallback.
package license

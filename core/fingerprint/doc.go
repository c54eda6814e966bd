// Package fingerprint provides deterministic content hashing.
//
// Fingerprints are SHA-256 digests of the JSON serialization of a value.
// They serve two purposes in the system:
//   - Cache keys: a compiled batch or change-set is cached under the
//     fingerprint of the request that produced it.
//   - Change detection: two snapshots of a sheet are considered identical
//     exactly when their content fingerprints match.
//
// Determinism is load-bearing: encoding/json emits map keys in sorted order
// and struct fields in declaration order, so the same logical content always
// hashes to the same digest across processes and restarts.
package fingerprint

// Package cache provides the shared artifact cache.
//
// A batch compile and a diff that reference the same fingerprint benefit
// from each other's work: both consult this cache before issuing network
// calls. Eviction is least-recently-used under an exact byte budget, and
// entries expire after a sliding TTL.
package cache

// Package storage provides the object storage client behind the snapshot
// archive. Diff baselines are persisted here so that a later diff has a
// durable "previous" snapshot to compare against.
package storage

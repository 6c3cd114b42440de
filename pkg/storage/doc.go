// Package storage defines the persistence contract for Digest nonce
// counters and the sentinel errors shared by its implementations.
//
// Adapters live in sub-packages: memory keeps counters in process with
// LRU eviction, postgres shares them across replicas.
package storage

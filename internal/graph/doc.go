// Package graph implements the persistent store of stable topology
// identities: every StableID ever created, its current display index,
// its liveness, a signature-indexed candidate search, and an
// append-only operation log for provenance.
//
// The graph is an in-memory structure owned by exactly one tracker.
// Nodes are created once, mutated in place on every reconciliation that
// matches them, marked dead (never physically removed) when
// reconciliation finds no survivor, and physically removed only when
// their owning feature is deleted.
//
// CRITICAL PATTERNS:
//
// Insertion order is identity-relevant. Every node carries a monotonic
// Seq assigned at insertion; equal-confidence candidates during
// matching are tie-broken by lowest Seq. Serialization preserves Seq so
// replayed documents tie-break identically.
//
// Dead nodes stay. MarkNodeDead retains the node for lineage and audit;
// it is excluded from candidate search and from feature index maps, but
// its uuid remains resolvable via Node/StableID for provenance walks.
//
// Thread-safety: none. The owning tracker serializes all access behind
// one mutex; the graph itself is a plain data structure, mirroring the
// single-writer discipline of the event store it is modeled on.
package graph

// Package topo defines the identity and signature types shared by the
// stable topology tracking subsystem.
//
// A parametric modeler re-enumerates a part's faces, edges, and vertices
// on every regeneration, in whatever order the geometry kernel happens to
// produce. Anything that referenced "face 3" is silently wrong after the
// next edit unless identities are carried forward. This package provides
// the vocabulary for doing that:
//
//   - StableID: a persistent identity handle for one topological entity,
//     decoupled from its transient display index.
//   - GeneratorLink: a lineage edge recording which parent entity and
//     operation produced an entity. Lineage forms a DAG rooted at
//     entities created with no parents.
//   - Signature: an approximate geometric descriptor (centroid, size,
//     direction) used for best-effort matching, never for identity.
//   - Scorer: pluggable similarity scoring over signatures, so
//     geometry-specific weighting is swappable and independently
//     testable from the reconciliation algorithm.
//   - IDGenerator: UUID minting with a deterministic test double.
//
// CRITICAL PATTERNS:
//
// Similarity is approximate by contract. Signatures drift continuously
// under small parameter edits, so scoring returns a confidence in [0,1]
// and callers compare against a configurable threshold. Exact equality
// is only ever a fast path, never a requirement.
//
// External string keys (feature ids, labels, operation names) are NFC
// normalized at the API boundary so persisted maps never split on
// Unicode representation.
package topo

// Package tracker implements the stable topology tracking orchestrator.
//
// The tracker owns one identity graph, per-feature index<->uuid maps,
// operation-context bracketing, the regeneration reconciliation
// algorithm, change notification, and whole-document (de)serialization.
// It is the single write path to the graph: collaborators (kernel
// adapter, selection manager) hold a reference to one tracker per open
// document and never touch the graph directly.
//
// ARCHITECTURE:
//
// Single-writer discipline. Every public method takes one exclusive
// mutex for its full duration, so a reconciliation pass executes
// atomically with respect to its feature's mapping. There is no
// internal goroutine, queue, or suspension point; the regeneration
// driver calls the tracker synchronously and every method runs to
// completion before returning. No cancellation semantics exist: a
// started pass always runs to completion, because abandoning one
// midway would leave identities half-carried.
//
// Reconciliation flow per feature:
//
//  1. BeginRegeneration snapshots the currently alive nodes.
//  2. UpdateAfterRegeneration matches the kernel's fresh enumeration
//     against the snapshot: face, then edge, then vertex; within a
//     type, kernel enumeration order; equal-confidence candidates
//     tie-break on lowest graph insertion sequence. Matched nodes keep
//     their uuid and take the new index and signature; unmatched
//     entities mint new ids; unclaimed survivors are marked dead.
//  3. The feature's index maps are rebuilt strictly from the matched
//     and newly minted set, and listeners fire exactly once.
//
// Given identical kernel output the pass is fully deterministic.
//
// CRITICAL PATTERNS:
//
// Listeners run synchronously on the caller's goroutine after the
// mutex is released, so a listener may query the tracker for other
// features. A listener must not re-enter the tracker for the feature
// currently being reconciled; that is undocumented behavior, not a
// supported pattern. Panics inside a listener are recovered and logged
// per listener so one faulty observer cannot starve the rest.
//
// Serialize/Deserialize are stop-the-world: Deserialize validates the
// entire document and swaps tracker state only on full success, never
// leaving a partially populated graph behind.
package tracker

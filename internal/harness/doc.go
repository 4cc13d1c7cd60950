// Package harness runs conformance scenarios against the topology
// tracker.
//
// A scenario is a YAML file describing one feature's regeneration
// history: a sequence of kernel enumerations (faces, edges, vertices
// with signatures) plus assertions over the reconciliation outcomes
// and the final tracked state. Scenarios validate the tracker's
// operational contract - identity survives signature drift, lost
// entities die, new entities mint - without any geometry kernel.
//
// Scenarios run with a sequential id generator, so whole-run golden
// snapshots are byte-stable and live under testdata/golden. Regenerate
// them with:
//
//	go test ./internal/harness -update
package harness

// Package calibration computes and composes the per-feature weights used by
// cost evaluation.
//
// Responsibilities: standard-deviation normalisers over one trait partition,
// final weight composition from authored weights and responsiveness,
// stale-schema detection, and immutable snapshot/rebuild of a weight set.
// Key types: Data, Set, Entry, Snapshot.
//
// Dependency rule: calibration may depend on feature. It works on plain
// feature rows and never imports posedb.
package calibration

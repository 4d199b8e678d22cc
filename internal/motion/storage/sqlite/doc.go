// Package sqlite persists published pose databases, their optimisation
// indexes and per-trait calibration in SQLite.
//
// The pose database and index are stored as the opaque gob+gzip blobs
// produced by posedb and index; only the summary columns and calibration
// entries are queryable. Schema changes are applied with golang-migrate
// from the embedded migrations directory.
//
// Dependency rule: sqlite may depend on posedb, index, calibration,
// feature, cost and monitoring. Motion packages never import it.
package sqlite

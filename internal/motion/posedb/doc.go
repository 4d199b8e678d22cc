// Package posedb owns the pose database: one fixed-stride feature row per
// pose in a flat matrix, per-pose metadata, the source animation table and
// the calibration set.
//
// Responsibilities: row storage and lookup, pose sequencing links, trait
// partitions, action lookups, stride validation and the opaque blob codec.
// Key types: Database, Pose, Matrix, AnimInfo.
//
// Poses refer to animations by AnimID and to each other by pose id; nothing
// holds a pointer back into the database. A Database is published once
// Finalize returns and is read-only afterwards, so any number of runtimes
// may query it concurrently.
//
// Dependency rule: posedb may depend on feature, calibration, animsrc and
// skeleton.
package posedb

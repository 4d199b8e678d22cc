// Package preprocess turns authored animation sources into a published
// pose database.
//
// Responsibilities: configuration validation before any data is written,
// fixed-step sampling of every source (and its mirrored pass), trajectory
// construction under the configured edge policy, pose sequencing, authored
// tag application and calibration.
// Key types: Preprocessor, Config, ValidationError.
//
// Preprocessing is an offline batch. Run checks its context between
// sources and returns the database only once it has been finalised and
// validated.
//
// Dependency rule: preprocess may depend on posedb, calibration, feature,
// animsrc, skeleton, config and monitoring.
package preprocess

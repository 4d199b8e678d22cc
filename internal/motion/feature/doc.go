// Package feature defines the per-feature matching contract and the ordered
// schema that lays features out in a pose row.
//
// Responsibilities: feature sizes and row offsets, offline extraction from
// sampled animation, runtime extraction from a live pose buffer, per-group
// metrics used by calibration and cost, and a serialisable schema
// description stored with every database.
// Key types: MatchFeature, Schema, Group, Sample, RuntimePose, Descriptor.
//
// Dependency rule: feature may depend on skeleton, monitoring and config.
// It must not depend on posedb, calibration or anything above them.
package feature

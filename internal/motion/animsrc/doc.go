// Package animsrc owns the animation sample surface consumed by the motion
// matching core.
//
// Responsibilities: keyframed sequences, blend spaces and composites behind
// one closed tagged variant (Source), root-motion extraction across loop
// boundaries, authored time-ranged tags, distance-matching curves, and the
// JSON clip library format used by the offline tool.
// Key types: Source, Kind, Sequence, BlendSpace, Composite, Tag, DistanceCurve.
//
// Dependency rule: animsrc may depend on skeleton and config only.
package animsrc

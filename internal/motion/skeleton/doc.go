// Package skeleton owns the bone-hierarchy query surface consumed by the
// motion matching core.
//
// Responsibilities: rigid transforms, local-to-component pose conversion,
// the reference skeleton, lateral mirroring of vectors, rotations, bone
// names and whole poses, and yaw/angle helpers.
// Key types: Skeleton, Transform, Pose, MirrorTable.
//
// Conventions: component space is Z-up with X forward and Y lateral. Yaw
// is the rotation about Z in radians, wrapped to (-π, π].
//
// Dependency rule: skeleton is a leaf package and imports no other
// motion package.
package skeleton

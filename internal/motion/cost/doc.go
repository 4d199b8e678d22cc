// Package cost evaluates the matching cost between a query feature row and
// a database pose row.
//
// The cost is strictly additive over schema groups, accumulated in channel
// order (momentum, angular momentum, trajectory, pose, extra features),
// then scaled by the pose Favour and, for the natural next pose, by the
// current-pose favour. Every term is non-negative, so a partial sum is a
// lower bound of the full cost.
//
// Dependency rule: cost may depend on feature and posedb. It never
// allocates on the evaluation path.
package cost

// Package runtime drives motion matching for one character, tick by tick.
//
// Each Update builds a query from the playing animation and the desired
// trajectory, decides in the active sub-mode whether to start a new
// channel, advances the channels and assembles the output pose.
//
//   - MotionMatching runs the selector at the configured interval.
//   - DistanceMatching plays an authored section at the clip time its
//     distance curve reaches for the live marker distance.
//   - Action plays the lead-in of a requested action and holds it for the
//     lead plus tail time.
//
// A Runtime that failed Initialize never returns errors from Update; its
// ticks hold the last pose, or the reference pose when nothing has played.
//
// Dependency rule: runtime sits at the top of the motion packages and may
// depend on all of them. A Runtime is not safe for concurrent use; the
// database and index it reads may be shared.
package runtime

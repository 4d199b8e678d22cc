// Package playback runs the blend channels of one character.
//
// Every transition creates a Channel. With the blend transition method a
// new channel eases in as Chosen alongside the Dominant one, is promoted
// once its ease reaches one, and the channel it replaces decays until its
// weight falls below the per-tick weight delta. The other methods cut to
// the new channel; inertialization also raises a one-shot smoothing
// request for the external blender.
//
// Channels are sampled and mirrored only when the final pose is
// assembled. Root motion and notifies are gathered while advancing.
//
// Dependency rule: playback may depend on posedb, animsrc, skeleton,
// config and monitoring. A Set belongs to one character and is not safe
// for concurrent use.
package playback

// Package distmatch drives playback time from authored distance curves.
//
// A Matcher collects, per trigger, every database clip pass whose source
// carries a valid distance curve. SelectStart picks the pass and start
// time once, by pose cost at the time each curve reaches the live marker
// distance; afterwards playback follows TimeForDistance, a monotonic curve
// lookup, until the curve ends.
//
// Dependency rule: distmatch may depend on cost, posedb, animsrc and
// monitoring.
package distmatch

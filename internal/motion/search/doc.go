// Package search selects the database pose that best matches a live query.
//
// A Selector decides when a search is due (interval elapsed, clip end
// reached, current pose unusable), short-circuits through the next-pose
// tolerance test, and otherwise takes the best pose found by the
// optimisation index or scans the full trait partition. The index costs
// poses with the Selector's own evaluator. Ties go to the lowest pose id.
//
// Dependency rule: search may depend on cost, index, posedb, feature,
// skeleton, config and monitoring. A Selector owns its scratch buffers and
// must not be shared between characters; the database and index it reads
// may be.
package search

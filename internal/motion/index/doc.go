// Package index implements the optimisation index: a layered tree of
// axis-aligned bounding boxes over pose feature rows, one tree per trait
// partition.
//
// Responsibilities: building trees by median split on the widest weighted
// atom, best-first branch-and-bound queries that narrow a partition to a
// candidate set, and a gob+gzip blob codec.
// Key types: Index, Config, Scratch.
//
// A query never prunes a box whose cost lower bound is at or below the best
// cost found so far, so the true minimum (and every pose tying it) is always
// among the candidates. Trees carry no cost configuration: each query takes
// the evaluator its caller ranks with, so bounds and final costs agree.
// Trees are read-only after Build; all per-query state lives in a
// caller-owned Scratch.
//
// Dependency rule: index may depend on cost, posedb, feature and
// calibration.
package index

// Package report renders inspection output for a published pose database:
// text summaries, PNG plots and an HTML coverage page.
//
// Dependency rule: report may depend on posedb, cost, feature and
// calibration. Nothing in the runtime path imports it.
package report

package runtime

import "errors"

var (
	// ErrNoDatabase is returned when the runtime has no pose database.
	ErrNoDatabase = errors.New("no pose database")
	// ErrNoSchema is returned when the database carries no feature schema.
	ErrNoSchema = errors.New("database has no feature schema")
	// ErrNoSkeleton is returned when no skeleton is supplied.
	ErrNoSkeleton = errors.New("no skeleton set")
	// ErrNoTrajectory is returned when the schema has no trajectory points.
	ErrNoTrajectory = errors.New("schema has no trajectory points")
	// ErrNoBones is returned when the schema matches no bones.
	ErrNoBones = errors.New("schema matches no bones")
	// ErrNoCalibration is returned when the database carries no calibration.
	ErrNoCalibration = errors.New("database has no calibration")
	// ErrNoMirrorTable is returned when mirrored poses exist without a table.
	ErrNoMirrorTable = errors.New("mirrored poses without a mirror table")
)

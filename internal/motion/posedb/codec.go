package posedb

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/motion.match/internal/motion/calibration"
	"github.com/banshee-data/motion.match/internal/motion/feature"
)

// blobVersion is bumped whenever the encoded layout changes.
const blobVersion = 1

type blob struct {
	Version      int
	Name         string
	PoseInterval float64
	Schema       []feature.Descriptor
	Poses        []Pose
	Stride       int
	Data         []float64
	Anims        []AnimInfo
	Calibration  *calibration.Set
}

// Encode serialises the database as a gob+gzip blob.
func (db *Database) Encode() ([]byte, error) {
	b := blob{
		Version:      blobVersion,
		Name:         db.Name,
		PoseInterval: db.PoseInterval,
		Schema:       db.Schema.Descriptors(),
		Poses:        db.Poses,
		Stride:       db.Matrix.Stride,
		Data:         db.Matrix.Data,
		Anims:        db.Anims,
		Calibration:  db.Calibration,
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(&b); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode rebuilds, finalises and validates a database from an Encode blob.
func Decode(data []byte) (*Database, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pose database blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var b blob
	if err := gob.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode pose database: %w", err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("unsupported pose database version %d", b.Version)
	}
	schema, err := feature.SchemaFromDescriptors(b.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild schema: %w", err)
	}
	db := &Database{
		Name:         b.Name,
		PoseInterval: b.PoseInterval,
		Schema:       schema,
		Poses:        b.Poses,
		Matrix:       Matrix{Stride: b.Stride, Data: b.Data},
		Anims:        b.Anims,
		Calibration:  b.Calibration,
	}
	if err := db.Validate(); err != nil {
		return nil, err
	}
	db.Finalize()
	return db, nil
}

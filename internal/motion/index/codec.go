package index

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/motion.match/internal/motion/posedb"
)

const blobVersion = 1

type blob struct {
	Version   int
	Config    Config
	PoseCount int
	Stride    int
	Trees     []tree
}

// Encode serialises the trees as a gob+gzip blob.
func (ix *Index) Encode() ([]byte, error) {
	b := blob{Version: blobVersion, Config: ix.cfg, PoseCount: ix.poseCount, Stride: ix.stride}
	for _, traits := range ix.db.TraitGroups() {
		if t, ok := ix.trees[traits]; ok {
			b.Trees = append(b.Trees, *t)
		}
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(&b); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode restores an index for db from an Encode blob. It returns ErrStale
// when the blob was built against a different database layout.
func Decode(data []byte, db *posedb.Database) (*Index, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty index blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var b blob
	if err := gob.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("unsupported index version %d", b.Version)
	}
	if db == nil || b.PoseCount != db.Len() || b.Stride != db.AtomCount() {
		return nil, ErrStale
	}
	ix := &Index{
		cfg:       b.Config,
		db:        db,
		groups:    db.Schema.Groups(),
		trees:     make(map[uint64]*tree, len(b.Trees)),
		poseCount: b.PoseCount,
		stride:    b.Stride,
	}
	for i := range b.Trees {
		t := &b.Trees[i]
		for _, id := range t.IDs {
			if id < 0 || id >= db.Len() {
				return nil, fmt.Errorf("%w: pose id %d out of range", ErrStale, id)
			}
		}
		ix.trees[t.Traits] = t
	}
	return ix, nil
}

package preprocess

import (
	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
)

// applyTags mutates already written poses covered by authored tags.
func (p *Preprocessor) applyTags(db *posedb.Database) {
	byAnim := make(map[int][]int)
	for i := range db.Poses {
		byAnim[db.Poses[i].AnimID] = append(byAnim[db.Poses[i].AnimID], i)
	}
	for anim, src := range p.Sources {
		if src == nil || len(src.Tags) == 0 {
			continue
		}
		for _, tag := range src.Tags {
			applied := 0
			for _, id := range byAnim[anim] {
				pose := &db.Poses[id]
				if !tag.Covers(pose.Time) {
					continue
				}
				p.applyTag(db, src, pose, tag)
				applied++
			}
			monitoring.Debugf(2, "[preprocess] %s: %s tag %q on %s covers %d poses", p.Name, tag.Kind, tag.Name, src.Name, applied)
		}
	}
}

func (p *Preprocessor) applyTag(db *posedb.Database, src *animsrc.Source, pose *posedb.Pose, tag animsrc.Tag) {
	switch tag.Kind {
	case animsrc.TagTraits:
		pose.Traits |= tag.Traits
	case animsrc.TagFavour:
		if tag.Favour > 0 {
			pose.Favour *= tag.Favour
		}
	case animsrc.TagDoNotUse:
		pose.DoNotUse = true
	case animsrc.TagAction:
		pose.ActionID = tag.ActionID
	case animsrc.TagInteraction:
		off, ok := p.Schema.InteractionOffset(tag.Name)
		if !ok {
			monitoring.WarnOnce("interaction:"+tag.Name, "[preprocess] %s: no interaction feature %q for tag on %s", p.Name, tag.Name, src.Name)
			return
		}
		// Tag locations are authored in clip space; rows store them
		// relative to the character root at the pose time.
		root := src.RootAt(p.Skeleton, pose.Time, pose.BlendPosition)
		loc := root.InverseTransformPoint(tag.Location)
		if pose.Mirrored {
			loc = p.Mirror.MirrorVector(loc)
		}
		row := db.Row(pose.ID)
		row[off], row[off+1], row[off+2] = loc[0], loc[1], loc[2]
	}
}

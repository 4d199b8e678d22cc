package animsrc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidLibrary is returned for malformed clip libraries.
var ErrInvalidLibrary = errors.New("invalid animation library")

// Library is a skeleton, its mirror table and the sources authored for it.
type Library struct {
	Skeleton *skeleton.RefSkeleton
	Mirror   *skeleton.MirrorTable
	Sources  []*Source
}

type libraryFile struct {
	Skeleton struct {
		Bones []boneJSON `json:"bones"`
	} `json:"skeleton"`
	Mirror *struct {
		Axis  string            `json:"axis"`
		Pairs map[string]string `json:"pairs"`
	} `json:"mirror,omitempty"`
	Sequences []sequenceJSON `json:"sequences"`
	Sources   []sourceJSON   `json:"sources"`
}

type transformJSON struct {
	Translation [3]float64  `json:"translation"`
	Rotation    *[4]float64 `json:"rotation,omitempty"` // w, x, y, z
	Yaw         *float64    `json:"yaw,omitempty"`
}

func (t transformJSON) transform() skeleton.Transform {
	tr := mgl64.Vec3(t.Translation)
	switch {
	case t.Rotation != nil:
		r := t.Rotation
		return skeleton.NewTransform(tr, mgl64.Quat{W: r[0], V: mgl64.Vec3{r[1], r[2], r[3]}}.Normalize())
	case t.Yaw != nil:
		return skeleton.YawTransform(tr, *t.Yaw)
	}
	return skeleton.NewTransform(tr, mgl64.QuatIdent())
}

type boneJSON struct {
	Name   string `json:"name"`
	Parent int    `json:"parent"`
	transformJSON
}

type keyJSON struct {
	Time float64 `json:"time"`
	transformJSON
}

type sequenceJSON struct {
	Name   string  `json:"name"`
	Length float64 `json:"length"`
	Tracks []struct {
		Bone string    `json:"bone"`
		Keys []keyJSON `json:"keys"`
	} `json:"tracks"`
	Notifies []Notify `json:"notifies,omitempty"`
}

type tagJSON struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Start    float64    `json:"start"`
	End      float64    `json:"end"`
	Traits   []string   `json:"traits,omitempty"`
	Favour   float64    `json:"favour,omitempty"`
	ActionID int        `json:"action_id,omitempty"`
	Location [3]float64 `json:"location,omitempty"`
}

type curveJSON struct {
	Trigger   string    `json:"trigger"`
	Times     []float64 `json:"times"`
	Distances []float64 `json:"distances"`
}

type sourceJSON struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Sequence   string   `json:"sequence,omitempty"`
	Composite  []string `json:"composite,omitempty"`
	BlendSpace []struct {
		Position [2]float64 `json:"position"`
		Sequence string     `json:"sequence"`
	} `json:"blend_space,omitempty"`
	BlendPositions [][2]float64 `json:"blend_positions,omitempty"`
	Loop           bool         `json:"loop"`
	Favour         float64      `json:"favour,omitempty"`
	Traits         []string     `json:"traits,omitempty"`
	Preceding      string       `json:"preceding,omitempty"`
	Following      string       `json:"following,omitempty"`
	Tags           []tagJSON    `json:"tags,omitempty"`
	DistanceCurves []curveJSON  `json:"distance_curves,omitempty"`
}

// LoadLibrary reads a JSON clip library from path.
func LoadLibrary(path string, traits *config.TraitRegistry) (*Library, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("library file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read library file: %w", err)
	}
	return ParseLibrary(data, traits)
}

// ParseLibrary decodes a JSON clip library. Trait names resolve through
// traits; sources reference sequences and each other by name.
func ParseLibrary(data []byte, traits *config.TraitRegistry) (*Library, error) {
	if traits == nil {
		traits = config.NewTraitRegistry(nil)
	}
	var f libraryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse library JSON: %w", err)
	}

	bones := make([]skeleton.Bone, len(f.Skeleton.Bones))
	for i, b := range f.Skeleton.Bones {
		bones[i] = skeleton.Bone{Name: b.Name, Parent: b.Parent, Local: b.transform()}
	}
	skel, err := skeleton.NewRefSkeleton(bones)
	if err != nil {
		return nil, err
	}
	lib := &Library{Skeleton: skel}

	if f.Mirror != nil {
		axis, err := parseAxis(f.Mirror.Axis)
		if err != nil {
			return nil, err
		}
		lib.Mirror = skeleton.NewMirrorTable(axis, f.Mirror.Pairs)
	}

	sequences := make(map[string]*Sequence, len(f.Sequences))
	for _, sj := range f.Sequences {
		if sj.Length <= 0 {
			return nil, fmt.Errorf("%w: sequence %q has non-positive length", ErrInvalidLibrary, sj.Name)
		}
		tracks := make([]Track, len(sj.Tracks))
		for i, tj := range sj.Tracks {
			keys := make([]Keyframe, len(tj.Keys))
			for k, kj := range tj.Keys {
				keys[k] = Keyframe{Time: kj.Time, Local: kj.transform()}
			}
			tracks[i] = Track{Bone: tj.Bone, Keys: keys}
		}
		sequences[sj.Name] = NewSequence(sj.Name, sj.Length, tracks, sj.Notifies)
	}
	lookup := func(name string) (*Sequence, error) {
		seq, ok := sequences[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown sequence %q", ErrInvalidLibrary, name)
		}
		return seq, nil
	}

	byName := make(map[string]int, len(f.Sources))
	for i, sj := range f.Sources {
		if _, dup := byName[sj.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate source %q", ErrInvalidLibrary, sj.Name)
		}
		byName[sj.Name] = i
	}

	for _, sj := range f.Sources {
		src, err := buildSource(sj, lookup, traits)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sj.Name, err)
		}
		if src.Preceding, err = resolveAdjacent(byName, sj.Preceding); err != nil {
			return nil, fmt.Errorf("source %q: %w", sj.Name, err)
		}
		if src.Following, err = resolveAdjacent(byName, sj.Following); err != nil {
			return nil, fmt.Errorf("source %q: %w", sj.Name, err)
		}
		lib.Sources = append(lib.Sources, src)
	}
	return lib, nil
}

func buildSource(sj sourceJSON, lookup func(string) (*Sequence, error), traits *config.TraitRegistry) (*Source, error) {
	kind, err := ParseKind(sj.Kind)
	if err != nil {
		return nil, err
	}
	var src *Source
	switch kind {
	case KindSequence:
		seq, err := lookup(sj.Sequence)
		if err != nil {
			return nil, err
		}
		src = NewSequenceSource(seq, sj.Loop)
	case KindBlendSpace:
		bs := &BlendSpace{Name: sj.Name}
		for _, s := range sj.BlendSpace {
			seq, err := lookup(s.Sequence)
			if err != nil {
				return nil, err
			}
			bs.Samples = append(bs.Samples, BlendSample{Position: mgl64.Vec2(s.Position), Sequence: seq})
		}
		var positions []mgl64.Vec2
		for _, p := range sj.BlendPositions {
			positions = append(positions, mgl64.Vec2(p))
		}
		src = NewBlendSpaceSource(bs, sj.Loop, positions...)
	case KindComposite:
		c := &Composite{Name: sj.Name}
		for _, name := range sj.Composite {
			seq, err := lookup(name)
			if err != nil {
				return nil, err
			}
			c.Segments = append(c.Segments, seq)
		}
		src = NewCompositeSource(c, sj.Loop)
	}
	src.Name = sj.Name
	if sj.Favour > 0 {
		src.Favour = sj.Favour
	}
	if src.Traits, err = traits.Mask(sj.Traits...); err != nil {
		return nil, err
	}

	for _, tj := range sj.Tags {
		tk, err := ParseTagKind(tj.Kind)
		if err != nil {
			return nil, err
		}
		if tj.End < tj.Start {
			return nil, fmt.Errorf("%w: tag %s ends before it starts", ErrInvalidLibrary, tj.Kind)
		}
		mask, err := traits.Mask(tj.Traits...)
		if err != nil {
			return nil, err
		}
		src.Tags = append(src.Tags, Tag{
			Kind: tk, Name: tj.Name, Start: tj.Start, End: tj.End, Traits: mask,
			Favour: tj.Favour, ActionID: tj.ActionID, Location: mgl64.Vec3(tj.Location),
		})
	}

	for _, cj := range sj.DistanceCurves {
		trigger, err := ParseTrigger(cj.Trigger)
		if err != nil {
			return nil, err
		}
		curve := DistanceCurve{Trigger: trigger, Times: cj.Times, Distances: cj.Distances}
		if err := curve.Validate(); err != nil {
			return nil, err
		}
		src.DistanceCurves = append(src.DistanceCurves, curve)
	}
	return src, nil
}

func resolveAdjacent(byName map[string]int, name string) (int, error) {
	if name == "" {
		return NoAdjacent, nil
	}
	idx, ok := byName[name]
	if !ok {
		return NoAdjacent, fmt.Errorf("%w: unknown adjacent source %q", ErrInvalidLibrary, name)
	}
	return idx, nil
}

func parseAxis(s string) (skeleton.Axis, error) {
	switch s {
	case "x", "X":
		return skeleton.AxisX, nil
	case "y", "Y", "":
		return skeleton.AxisY, nil
	case "z", "Z":
		return skeleton.AxisZ, nil
	}
	return 0, fmt.Errorf("%w: unknown mirror axis %q", ErrInvalidLibrary, s)
}

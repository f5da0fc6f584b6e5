package fs

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
)

// spaceRecord is the YAML form of a Space. The map blob lives next to it
// in its own file so the record stays human-readable.
type spaceRecord struct {
	ID        string    `yaml:"id"`
	MapFile   string    `yaml:"map_file"`
	MapSize   int       `yaml:"map_size"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// anchorRecord is the YAML form of an Anchor. The transform is stored
// column-major, as 16 numbers.
type anchorRecord struct {
	ID        string            `yaml:"id"`
	SpaceID   string            `yaml:"space_id"`
	Transform []float64         `yaml:"transform,flow"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
	CreatedAt time.Time         `yaml:"created_at"`
	UpdatedAt time.Time         `yaml:"updated_at"`
}

func encodeSpace(sp core.Space, mapFile string) ([]byte, error) {
	return encode(spaceRecord{
		ID:        sp.ID,
		MapFile:   mapFile,
		MapSize:   len(sp.Map),
		CreatedAt: sp.CreatedAt.UTC(),
		UpdatedAt: sp.UpdatedAt.UTC(),
	})
}

func decodeSpace(data []byte) (spaceRecord, error) {
	var rec spaceRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return spaceRecord{}, fmt.Errorf("failed to parse space record: %w", err)
	}
	if rec.ID == "" {
		return spaceRecord{}, fmt.Errorf("space record has no id")
	}
	return rec, nil
}

func encodeAnchor(a core.Anchor) ([]byte, error) {
	return encode(anchorRecord{
		ID:        a.ID,
		SpaceID:   a.SpaceID,
		Transform: a.Transform[:],
		Metadata:  a.Metadata.ToMap(),
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	})
}

func decodeAnchor(data []byte) (core.Anchor, error) {
	var rec anchorRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return core.Anchor{}, fmt.Errorf("failed to parse anchor record: %w", err)
	}
	if rec.ID == "" {
		return core.Anchor{}, fmt.Errorf("anchor record has no id")
	}

	a := core.Anchor{
		ID:        rec.ID,
		SpaceID:   rec.SpaceID,
		Transform: geom.Identity().Mat4(),
		Metadata:  core.MetadataFromMap(rec.Metadata),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	switch len(rec.Transform) {
	case 16:
		copy(a.Transform[:], rec.Transform)
	case 0:
	default:
		return core.Anchor{}, fmt.Errorf("anchor %s: transform has %d values, want 16", rec.ID, len(rec.Transform))
	}
	return a, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package rtti

import (
	"os"

	"github.com/BurntSushi/toml"
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
)

// Manifest is the TOML form of the type metadata a compiler emits for a program: the
// classification ranges and one entry per class.
//
//	[ranges]
//	object_array_id = 10
//	array_id_min = 10
//	array_id_max = 20
//	weak_reference_id_min = 30
//	weak_reference_id_max = 31
//	weak_reference_field_offset = 8
//
//	[[type]]
//	name = "Point"
//	id = 5
//	size = 24
//	reference_map = [8, -1]
type Manifest struct {
	Ranges ManifestRanges `toml:"ranges"`
	Types  []ManifestType `toml:"type"`
}

type ManifestRanges struct {
	ObjectArrayID            int32 `toml:"object_array_id"`
	ArrayIDMin               int32 `toml:"array_id_min"`
	ArrayIDMax               int32 `toml:"array_id_max"`
	WeakReferenceIDMin       int32 `toml:"weak_reference_id_min"`
	WeakReferenceIDMax       int32 `toml:"weak_reference_id_max"`
	WeakReferenceFieldOffset int64 `toml:"weak_reference_field_offset"`
}

type ManifestType struct {
	Name    string `toml:"name"`
	ID      int32  `toml:"id"`
	TraitID int32  `toml:"trait_id"`
	Size    int32  `toml:"size"`
	// RangeUntil defaults to ID when omitted
	RangeUntil *int32 `toml:"range_until"`
	// Class names another entry in the manifest
	Class        string  `toml:"class"`
	ReferenceMap []int64 `toml:"reference_map"`
}

// LoadManifest reads the manifest at path and registers every type it describes
func LoadManifest(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrapf(err, "cannot read type manifest %s", path)
	}

	registry, err := ParseManifest(data)
	if err != nil {
		return nil, cerrors.Wrapf(err, "type manifest %s", path)
	}
	return registry, nil
}

// ParseManifest decodes a TOML manifest and registers every type it describes
func ParseManifest(data []byte) (*Registry, error) {
	var manifest Manifest
	err := toml.Unmarshal(data, &manifest)
	if err != nil {
		return nil, cerrors.Wrap(err, "parse error")
	}

	return manifest.Build()
}

// Build creates a registry from the manifest's ranges and registers every type in order
func (m *Manifest) Build() (*Registry, error) {
	registry, err := NewRegistry(Ranges{
		ObjectArrayTypeID:        m.Ranges.ObjectArrayID,
		ArrayTypeIDMin:           m.Ranges.ArrayIDMin,
		ArrayTypeIDMax:           m.Ranges.ArrayIDMax,
		WeakReferenceTypeIDMin:   m.Ranges.WeakReferenceIDMin,
		WeakReferenceTypeIDMax:   m.Ranges.WeakReferenceIDMax,
		WeakReferenceFieldOffset: m.Ranges.WeakReferenceFieldOffset,
	})
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*RTTI, len(m.Types))
	descriptors := make([]*RTTI, len(m.Types))
	for i, entry := range m.Types {
		if _, duplicate := byName[entry.Name]; duplicate {
			return nil, errors.Errorf("type %q is declared twice", entry.Name)
		}

		rangeUntil := entry.ID
		if entry.RangeUntil != nil {
			rangeUntil = *entry.RangeUntil
		}

		var refs ReferenceMap
		if entry.ReferenceMap != nil {
			refs = DecodeReferenceMap(entry.ReferenceMap)
		}

		descriptors[i] = &RTTI{
			TypeID:       entry.ID,
			TraitID:      entry.TraitID,
			Name:         entry.Name,
			Size:         entry.Size,
			IDRangeUntil: rangeUntil,
			ReferenceMap: refs,
		}
		byName[entry.Name] = descriptors[i]
	}

	for i, entry := range m.Types {
		if entry.Class == "" {
			continue
		}

		class, ok := byName[entry.Class]
		if !ok {
			return nil, errors.Errorf("type %q names unknown class %q", entry.Name, entry.Class)
		}
		descriptors[i].Class = class
	}

	for _, t := range descriptors {
		_, err = registry.Register(t)
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}

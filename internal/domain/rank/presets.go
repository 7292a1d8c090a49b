package rank

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel is the upper bound of the top tier in the bundled tables.
const Sentinel = 9999

const (
	PresetStandard = "standard"
	PresetCompact  = "compact"
)

var standard = MustTable(
	Tier{Key: "beginner", Name: "Beginner", Class: "rank-beginner", Min: 0, Max: 1399},
	Tier{Key: "intermediate", Name: "Intermediate", Class: "rank-intermediate", Min: 1400, Max: 1799},
	Tier{Key: "advanced", Name: "Advanced", Class: "rank-advanced", Min: 1800, Max: 2199},
	Tier{Key: "expert", Name: "Expert", Class: "rank-expert", Min: 2200, Max: 2599},
	Tier{Key: "master", Name: "Master", Class: "rank-master", Min: 2600, Max: 2999},
	Tier{Key: "grandmaster", Name: "Grandmaster", Class: "rank-grandmaster", Min: 3000, Max: Sentinel},
)

var compact = MustTable(
	Tier{Key: "beginner", Name: "Beginner", Class: "rank-beginner", Min: 0, Max: 1200},
	Tier{Key: "intermediate", Name: "Intermediate", Class: "rank-intermediate", Min: 1201, Max: 2000},
	Tier{Key: "advanced", Name: "Advanced", Class: "rank-advanced", Min: 2001, Max: Sentinel},
)

func Standard() Table { return standard }

func Compact() Table { return compact }

func Preset(name string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetStandard:
		return standard, nil
	case PresetCompact:
		return compact, nil
	default:
		return Table{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidTable, name)
	}
}

type tableFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// ParseTable decodes a YAML document of the form
//
//	tiers:
//	  - {key: beginner, name: Beginner, class: rank-beginner, min: 0, max: 1399}
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return NewTable(f.Tiers...)
}

func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read tier table: %w", err)
	}
	return ParseTable(data)
}

// Resolve picks the table file when one is configured, the named preset otherwise.
func Resolve(preset, file string) (Table, error) {
	if strings.TrimSpace(file) != "" {
		return LoadTable(file)
	}
	return Preset(preset)
}

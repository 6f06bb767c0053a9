package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Slot string

const (
	SlotUncarriable Slot = "uncarriable"
	SlotObject      Slot = "object"
	SlotTool        Slot = "tool"
	SlotArmor       Slot = "armor"
)

type ObjectDef struct {
	ID       string `yaml:"id" json:"id"`
	Blocking bool   `yaml:"blocking,omitempty" json:"blocking,omitempty"`
	Slot     Slot   `yaml:"slot,omitempty" json:"slot,omitempty"`
	// Drops is the object left behind when this one is chopped or dug out.
	Drops string `yaml:"drops,omitempty" json:"drops,omitempty"`
}

func (d ObjectDef) Carriable() bool { return d.Slot != SlotUncarriable }

type MobDef struct {
	ID       string  `yaml:"id" json:"id"`
	Speed    float64 `yaml:"speed" json:"speed"`
	Loot     string  `yaml:"loot" json:"loot"`
	SpawnMin int     `yaml:"spawn_min" json:"spawn_min"`
	SpawnMax int     `yaml:"spawn_max" json:"spawn_max"`
}

type Catalogs struct {
	Objects map[string]ObjectDef
	// Mobs keeps file order so spawning is reproducible.
	Mobs   []MobDef
	Digest string
}

type file struct {
	Objects []ObjectDef `yaml:"objects"`
	Mobs    []MobDef    `yaml:"mobs"`
}

// Default returns the catalogs compiled into the binary.
func Default() (*Catalogs, error) {
	return Parse(defaultYAML)
}

// Load reads a catalogs file. An empty path yields the defaults.
func Load(path string) (*Catalogs, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalogs, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalogs: %w", err)
	}
	c := &Catalogs{
		Objects: make(map[string]ObjectDef, len(f.Objects)),
		Digest:  sha256Hex(raw),
	}
	for _, d := range f.Objects {
		if d.ID == "" {
			return nil, fmt.Errorf("catalogs: object with empty id")
		}
		if _, dup := c.Objects[d.ID]; dup {
			return nil, fmt.Errorf("catalogs: duplicate object %q", d.ID)
		}
		if d.Slot == "" {
			d.Slot = SlotObject
		}
		c.Objects[d.ID] = d
	}
	seen := map[string]bool{}
	for _, m := range f.Mobs {
		if m.ID == "" {
			return nil, fmt.Errorf("catalogs: mob with empty id")
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("catalogs: duplicate mob %q", m.ID)
		}
		seen[m.ID] = true
		if m.Speed <= 0 {
			return nil, fmt.Errorf("catalogs: mob %q speed must be positive", m.ID)
		}
		if m.Loot != "" {
			if _, ok := c.Objects[m.Loot]; !ok {
				return nil, fmt.Errorf("catalogs: mob %q drops unknown object %q", m.ID, m.Loot)
			}
		}
		if m.SpawnMax < m.SpawnMin {
			return nil, fmt.Errorf("catalogs: mob %q spawn_max < spawn_min", m.ID)
		}
		c.Mobs = append(c.Mobs, m)
	}
	for _, d := range c.Objects {
		if d.Drops == "" {
			continue
		}
		if _, ok := c.Objects[d.Drops]; !ok {
			return nil, fmt.Errorf("catalogs: object %q drops unknown object %q", d.ID, d.Drops)
		}
	}
	return c, nil
}

func (c *Catalogs) Object(id string) (ObjectDef, bool) {
	d, ok := c.Objects[id]
	return d, ok
}

// Blocking reports whether an object placed on a tile stops movement.
// Unknown objects do not block.
func (c *Catalogs) Blocking(id string) bool {
	return c.Objects[id].Blocking
}

func (c *Catalogs) Mob(id string) (MobDef, bool) {
	for _, m := range c.Mobs {
		if m.ID == id {
			return m, true
		}
	}
	return MobDef{}, false
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/wfunc/geoworld/models"
)

var (
	ErrUnknownTemplate = errors.New("unknown item template")
	ErrNoTemplates     = errors.New("no templates for item type")
)

//go:embed items.yaml
var embeddedItems []byte

// Template is one named item definition.
type Template struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Icon            string         `yaml:"icon"`
	Rarity          string         `yaml:"rarity"`
	Type            string         `yaml:"type"`
	Stats           map[string]int `yaml:"stats"`
	CollectDuration int64          `yaml:"collection_time"`
}

type file struct {
	Templates []Template `yaml:"templates"`
}

// Overrides adjusts a freshly created instance. Zero values are ignored.
type Overrides struct {
	ID              string
	Stats           map[string]int
	CollectDuration int64
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	templates map[string]Template
	byType    map[models.ItemType][]string
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embeddedItems)
}

// Load reads templates from a YAML file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		templates: make(map[string]Template, len(f.Templates)),
		byType:    make(map[models.ItemType][]string),
	}
	for _, t := range f.Templates {
		if t.ID == "" {
			return nil, errors.New("template without id")
		}
		if _, dup := c.templates[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		switch models.ItemType(t.Type) {
		case models.ItemWeapon, models.ItemArmor, models.ItemConsumable, models.ItemCollectible:
		default:
			return nil, fmt.Errorf("template %q: unknown type %q", t.ID, t.Type)
		}
		c.templates[t.ID] = t
		typ := models.ItemType(t.Type)
		c.byType[typ] = append(c.byType[typ], t.ID)
	}
	for typ := range c.byType {
		sort.Strings(c.byType[typ])
	}
	return c, nil
}

// CreateItem builds a new instance of templateID with a fresh identity.
func (c *Catalog) CreateItem(templateID string, o Overrides) (models.Item, error) {
	t, ok := c.templates[templateID]
	if !ok {
		return models.Item{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}

	item := models.Item{
		ID:              o.ID,
		TemplateID:      t.ID,
		Name:            t.Name,
		Description:     t.Description,
		Icon:            t.Icon,
		Rarity:          t.Rarity,
		Type:            models.ItemType(t.Type),
		CollectDuration: t.CollectDuration,
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	stats := t.Stats
	if o.Stats != nil {
		stats = o.Stats
	}
	if len(stats) > 0 {
		item.Stats = make(map[string]int, len(stats))
		for k, v := range stats {
			item.Stats[k] = v
		}
	}
	if o.CollectDuration > 0 {
		item.CollectDuration = o.CollectDuration
	}
	return item, nil
}

// Types lists the item types that have at least one template.
func (c *Catalog) Types() []models.ItemType {
	out := make([]models.ItemType, 0, len(c.byType))
	for typ := range c.byType {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Random picks a template id of the given type.
func (c *Catalog) Random(rng *rand.Rand, typ models.ItemType) (string, error) {
	ids := c.byType[typ]
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoTemplates, typ)
	}
	return ids[rng.Intn(len(ids))], nil
}

func (c *Catalog) Len() int {
	return len(c.templates)
}

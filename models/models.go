// models/models.go
package models

import (
	"time"
)

// ItemType 物品类型
type ItemType string

const (
	ItemWeapon      ItemType = "weapon"
	ItemArmor       ItemType = "armor"
	ItemConsumable  ItemType = "consumable"
	ItemCollectible ItemType = "collectible"
)

// Well known stat keys carried in Item.Stats.
const (
	StatDamage  = "damage"
	StatDefense = "defense"
	StatHeal    = "heal"
	StatValue   = "value"
)

// Position is a latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Stats 玩家属性
type Stats struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Intelligence int `json:"intelligence"`
	Stamina      int `json:"stamina"`
}

// Item is an item instance as produced by the catalog. Inventory entries use
// it directly; world items embed it.
type Item struct {
	ID              string         `json:"id"`
	TemplateID      string         `json:"templateId"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Icon            string         `json:"icon,omitempty"`
	Rarity          string         `json:"rarity,omitempty"`
	Type            ItemType       `json:"type"`
	Stats           map[string]int `json:"stats,omitempty"`
	CollectDuration int64          `json:"collectionTime"` // milliseconds
}

// Stat returns the named stat, or def when the item does not carry it.
func (i Item) Stat(name string, def int) int {
	if v, ok := i.Stats[name]; ok {
		return v
	}
	return def
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	c := i
	if i.Stats != nil {
		c.Stats = make(map[string]int, len(i.Stats))
		for k, v := range i.Stats {
			c.Stats[k] = v
		}
	}
	return c
}

// WorldItem is an item placed in the shared world.
type WorldItem struct {
	Item
	Position  Position  `json:"position"`
	ClaimedBy string    `json:"claimedBy,omitempty"`
	ClaimedAt time.Time `json:"-"`
	Deadline  time.Time `json:"-"`
	ClaimID   uint64    `json:"-"`
	TimerID   int64     `json:"-"`
}

// Claimed reports whether some player holds the claim.
func (w *WorldItem) Claimed() bool {
	return w.ClaimedBy != ""
}

// Player 玩家数据模型
type Player struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Position       Position  `json:"position"`
	Health         int       `json:"health"`
	MaxHealth      int       `json:"maxHealth"`
	Level          int       `json:"level"`
	Experience     int       `json:"experience"`
	Currency       int       `json:"currency"`
	Inventory      []Item    `json:"inventory"`
	Stats          Stats     `json:"stats"`
	Defense        int       `json:"defense"`
	EquippedWeapon string    `json:"equippedWeapon,omitempty"`
	LastMessage    string    `json:"lastMessage,omitempty"`
	Avatar         string    `json:"avatar"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// FindItem returns the index of the inventory item with the given id, or -1.
func (p *Player) FindItem(itemID string) int {
	for i := range p.Inventory {
		if p.Inventory[i].ID == itemID {
			return i
		}
	}
	return -1
}

// RemoveItem detaches an inventory item and reports whether it existed.
func (p *Player) RemoveItem(itemID string) (Item, bool) {
	idx := p.FindItem(itemID)
	if idx < 0 {
		return Item{}, false
	}
	item := p.Inventory[idx]
	p.Inventory = append(p.Inventory[:idx], p.Inventory[idx+1:]...)
	if p.EquippedWeapon == itemID {
		p.EquippedWeapon = ""
	}
	return item, true
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p *Player) Clone() *Player {
	c := *p
	c.Inventory = make([]Item, len(p.Inventory))
	for i, item := range p.Inventory {
		c.Inventory[i] = item.Clone()
	}
	return &c
}

// Profile 公开资料
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Level      int       `json:"level"`
	Experience int       `json:"experience"`
	Health     int       `json:"health"`
	MaxHealth  int       `json:"maxHealth"`
	Currency   int       `json:"currency"`
	Stats      Stats     `json:"stats"`
	Avatar     string    `json:"avatar"`
	ItemCount  int       `json:"itemCount"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// ProfileOf builds the public view of a player.
func ProfileOf(p *Player) Profile {
	return Profile{
		ID:         p.ID,
		Name:       p.Name,
		Level:      p.Level,
		Experience: p.Experience,
		Health:     p.Health,
		MaxHealth:  p.MaxHealth,
		Currency:   p.Currency,
		Stats:      p.Stats,
		Avatar:     p.Avatar,
		ItemCount:  len(p.Inventory),
		JoinedAt:   p.JoinedAt,
	}
}

// RecordKind 游戏记录类型
type RecordKind string

const (
	RecordJoin    RecordKind = "join"
	RecordLeave   RecordKind = "leave"
	RecordCollect RecordKind = "collect"
	RecordAttack  RecordKind = "attack"
	RecordHeal    RecordKind = "heal"
	RecordDrop    RecordKind = "drop"
	RecordSpawn   RecordKind = "spawn"
)

// GameRecord 游戏记录模型
type GameRecord struct {
	Kind      RecordKind             `json:"kind"`
	PlayerID  string                 `json:"player_id,omitempty"`
	TargetID  string                 `json:"target_id,omitempty"`
	ItemID    string                 `json:"item_id,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

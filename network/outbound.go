package network

import "github.com/wfunc/geoworld/models"

type InitMessage struct {
	Type         string                    `json:"type"`
	PlayerID     string                    `json:"playerId"`
	SessionToken string                    `json:"sessionToken"`
	Player       *models.Player            `json:"player"`
	Players      map[string]*models.Player `json:"players"`
	WorldItems   []*models.WorldItem       `json:"worldItems"`
	Avatars      []string                  `json:"avatars"`
}

// WorldUpdate is the full snapshot sent after every mutation.
type WorldUpdate struct {
	Type       string                    `json:"type"`
	Players    map[string]*models.Player `json:"players"`
	WorldItems []*models.WorldItem       `json:"worldItems"`
}

type PlayerEvent struct {
	Type     string         `json:"type"`
	PlayerID string         `json:"playerId"`
	Player   *models.Player `json:"player,omitempty"`
}

type ItemEvent struct {
	Type string            `json:"type"`
	Item *models.WorldItem `json:"item"`
}

type CollectionEvent struct {
	Type     string       `json:"type"`
	ItemID   string       `json:"itemId"`
	Duration int64        `json:"duration,omitempty"` // milliseconds
	Item     *models.Item `json:"item,omitempty"`
	Currency int          `json:"currency,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type ItemUsed struct {
	Type     string          `json:"type"`
	ItemID   string          `json:"itemId"`
	ItemType models.ItemType `json:"itemType"`
	Effect   string          `json:"effect"`
	Consumed bool            `json:"consumed"`
	Player   *models.Player  `json:"player"`
}

// Failure reports a rejected request to its sender.
type Failure struct {
	Type           string `json:"type"`
	ItemID         string `json:"itemId,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
	Error          string `json:"error"`
}

type AttackResult struct {
	Type           string `json:"type"`
	AttackerID     string `json:"attackerId"`
	TargetPlayerID string `json:"targetPlayerId"`
	WeaponID       string `json:"weaponId"`
	Damage         int    `json:"damage"`
	TargetHealth   int    `json:"targetHealth"`
	Defeated       bool   `json:"defeated"`
}

type HealResult struct {
	Type           string `json:"type"`
	HealerID       string `json:"healerId"`
	TargetPlayerID string `json:"targetPlayerId"`
	ItemID         string `json:"itemId"`
	Amount         int    `json:"amount"`
	TargetHealth   int    `json:"targetHealth"`
}

type ProfileData struct {
	Type    string         `json:"type"`
	Profile models.Profile `json:"profile"`
}

type ItemDropped struct {
	Type   string            `json:"type"`
	ItemID string            `json:"itemId"`
	Item   *models.WorldItem `json:"item"`
}
